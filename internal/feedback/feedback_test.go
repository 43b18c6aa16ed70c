package feedback

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/teamup-coach/internal/coaching"
	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/notify"
	"github.com/untibullet/teamup-coach/internal/records"
	"github.com/untibullet/teamup-coach/internal/repository"
	"go.uber.org/zap"
)

var sejong = models.Team{ID: "team_sejong", Name: "Sejong Born", Level: "B", TeamDNA: models.DNABulls}

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recorder) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return notify.Notification{}
	}
	return r.sent[len(r.sent)-1]
}

// backendStub отвечает заданными ошибками и запоминает вызовы
type backendStub struct {
	feedbackErr error
	reportErr   error
	calls       []string
	lastReq     coaching.FeedbackRequest
}

func (b *backendStub) SubmitFeedback(_ context.Context, gameID string, req coaching.FeedbackRequest) (*coaching.FeedbackResponse, error) {
	b.calls = append(b.calls, "feedback:"+gameID)
	b.lastReq = req
	if b.feedbackErr != nil {
		return nil, b.feedbackErr
	}
	return &coaching.FeedbackResponse{GameID: gameID, TeamID: req.TeamID}, nil
}

func (b *backendStub) CreateReport(_ context.Context, gameID, teamID string) (*coaching.ReportResponse, error) {
	b.calls = append(b.calls, "report:"+gameID)
	if b.reportErr != nil {
		return nil, b.reportErr
	}
	return &coaching.ReportResponse{GameID: gameID, TeamID: teamID, AIComment: "Keep boxing out."}, nil
}

type fixture struct {
	svc   *Service
	recs  *records.Service
	gen   *coaching.Generator
	notes *recorder
}

func setup(t *testing.T, backend func(*coaching.Generator, repository.Store) coaching.Backend) fixture {
	t.Helper()
	store, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveTeam(ctx, sejong))
	require.NoError(t, store.SetCurrentUser(ctx, models.User{
		ID: "u1", Email: "captain@teamup.kr", Nickname: "captain", CurrentTeamID: sejong.ID,
	}))

	gen := coaching.NewGenerator(rand.New(rand.NewPCG(11, 12)), models.DNABulls)
	recs := records.New(store)
	notes := &recorder{}

	svc := New(recs, gen, backend(gen, store), notes, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 9, 13, 20, 0, 0, 0, time.UTC) }

	return fixture{svc: svc, recs: recs, gen: gen, notes: notes}
}

func local(gen *coaching.Generator, store repository.Store) coaching.Backend {
	return coaching.NewLocalBackend(gen, store)
}

func answers(position int, grade string) map[string]string {
	qs, _ := coaching.Questions(position)
	out := make(map[string]string, len(qs))
	for _, q := range qs {
		for _, o := range q.Options {
			if strings.HasSuffix(o.Code, "_"+grade) {
				out[q.ID] = o.Code
			}
		}
	}
	return out
}

func TestSubmitQuick_SejongBornBeatsThunder(t *testing.T) {
	f := setup(t, local)
	ctx := context.Background()

	rec, err := f.svc.SubmitQuick(ctx, QuickInput{
		Opponent:    "Thunder",
		Result:      models.ResultWin,
		FeedbackTag: models.TagDefense,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.ID, "rec_"))
	assert.Equal(t, sejong.ID, rec.TeamID)
	assert.Equal(t, "Sejong Born", rec.TeamName)
	assert.Equal(t, "Thunder", rec.Opponent)
	assert.Equal(t, "2025-09-13", rec.GameDate)
	assert.Contains(t, f.gen.Candidates(models.ResultWin, models.TagDefense, models.DNABulls), rec.AIComment)

	stats, err := f.recs.CurrentTeamStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStats{TotalGames: 1, Wins: 1, WinRate: 100}, stats)

	stored, err := f.recs.CurrentTeamGameRecords(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.ID, stored[0].ID)
}

func TestSubmitQuick_Validation(t *testing.T) {
	f := setup(t, local)
	ctx := context.Background()

	tests := []struct {
		name string
		in   QuickInput
	}{
		{"empty opponent", QuickInput{Opponent: "   ", Result: models.ResultWin, FeedbackTag: models.TagDefense}},
		{"unknown result", QuickInput{Opponent: "Thunder", Result: "TIE", FeedbackTag: models.TagDefense}},
		{"missing tag", QuickInput{Opponent: "Thunder", Result: models.ResultLose}},
		{"unknown tag", QuickInput{Opponent: "Thunder", Result: models.ResultLose, FeedbackTag: "SPEED"}},
		{"bad date", QuickInput{Opponent: "Thunder", Result: models.ResultLose, FeedbackTag: models.TagMental, GameDate: "13/09/2025"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitQuick(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	stored, err := f.recs.CurrentTeamGameRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSubmit_LocalBackend(t *testing.T) {
	f := setup(t, local)
	ctx := context.Background()

	rec, err := f.svc.Submit(ctx, Input{
		Opponent: "Thunder",
		GameDate: "2025-09-12",
		Result:   models.ResultLose,
		Positions: map[int]map[string]string{
			5: answers(5, "POOR"),
			1: answers(1, "GOOD"),
		},
	})
	require.NoError(t, err)

	require.Len(t, rec.PositionFeedbacks, 2)
	assert.Equal(t, 1, rec.PositionFeedbacks[0].PositionNumber)
	assert.Equal(t, 5, rec.PositionFeedbacks[1].PositionNumber)
	assert.Equal(t, models.TagDefense, rec.FeedbackTag)
	assert.Equal(t, "2025-09-12", rec.GameDate)
	assert.Contains(t, f.gen.Candidates(models.ResultLose, models.TagDefense, models.DNABulls), rec.AIComment)

	stored, err := f.recs.CurrentTeamGameRecords(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.PositionFeedbacks, stored[0].PositionFeedbacks)

	assert.Equal(t, notify.LevelSuccess, f.notes.last().Level)
}

func TestSubmit_IncompleteAnswersWriteNothing(t *testing.T) {
	stub := &backendStub{}
	f := setup(t, func(*coaching.Generator, repository.Store) coaching.Backend { return stub })
	ctx := context.Background()

	partial := answers(2, "AVERAGE")
	delete(partial, coaching.PositionQuestionID)

	_, err := f.svc.Submit(ctx, Input{
		Opponent:  "Thunder",
		Result:    models.ResultWin,
		Positions: map[int]map[string]string{1: answers(1, "GOOD"), 2: partial},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, coaching.ErrInvalidAnswers)

	_, err = f.svc.Submit(ctx, Input{Opponent: "Thunder", Result: models.ResultWin})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, stub.calls)
	stored, err := f.recs.CurrentTeamGameRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSubmit_BackendFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name  string
		stub  *backendStub
		calls int
	}{
		{"feedback call fails", &backendStub{feedbackErr: &coaching.RemoteError{StatusCode: 500, Message: "model offline"}}, 1},
		{"report call fails", &backendStub{reportErr: errors.New("connection reset")}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, func(*coaching.Generator, repository.Store) coaching.Backend { return tt.stub })
			ctx := context.Background()

			_, err := f.svc.Submit(ctx, Input{
				Opponent:  "Thunder",
				Result:    models.ResultWin,
				Positions: map[int]map[string]string{3: answers(3, "GOOD")},
			})
			require.ErrorIs(t, err, ErrBackend)
			assert.Len(t, tt.stub.calls, tt.calls)

			last := f.notes.last()
			assert.Equal(t, notify.LevelError, last.Level)
			assert.NotEmpty(t, last.Message)

			stored, err := f.recs.CurrentTeamGameRecords(ctx)
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestSubmit_TiedToMatchedTeam(t *testing.T) {
	stub := &backendStub{}
	f := setup(t, func(*coaching.Generator, repository.Store) coaching.Backend { return stub })
	ctx := context.Background()
	store := f.recs.Store()

	thunder := models.TeamRef{ID: "team_thunder", Name: "Thunder"}
	require.NoError(t, store.AddMatchedTeam(ctx, models.MatchedTeam{ID: "match_1", TeamID: sejong.ID, OpponentTeam: thunder}))
	require.NoError(t, store.AddMatchedTeam(ctx, models.MatchedTeam{ID: "match_2", TeamID: sejong.ID, OpponentTeam: thunder}))

	rec, err := f.svc.Submit(ctx, Input{
		Opponent:      "Thunder",
		Result:        models.ResultWin,
		MatchedTeamID: "match_1",
		Positions:     map[int]map[string]string{4: answers(4, "GOOD")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"feedback:match_1", "report:match_1"}, stub.calls)
	assert.Equal(t, sejong.ID, stub.lastReq.TeamID)
	assert.Equal(t, "match_1", rec.ID)
	assert.Equal(t, "Keep boxing out.", rec.AIComment)

	left, err := f.recs.MatchedTeams(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "match_2", left[0].ID)

	stored, err := f.recs.CurrentTeamGameRecords(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestSubmit_MatchedTeamMustBelongToCurrentTeam(t *testing.T) {
	stub := &backendStub{}
	f := setup(t, func(*coaching.Generator, repository.Store) coaching.Backend { return stub })
	ctx := context.Background()
	store := f.recs.Store()

	other := models.Team{ID: "team_other", Name: "Other"}
	require.NoError(t, store.SaveTeam(ctx, other))
	require.NoError(t, store.AddMatchedTeam(ctx, models.MatchedTeam{
		ID: "m_other", TeamID: other.ID, OpponentTeam: models.TeamRef{ID: "team_thunder", Name: "Thunder"},
	}))

	for _, id := range []string{"m_other", "m_missing"} {
		_, err := f.svc.Submit(ctx, Input{
			Opponent:      "Thunder",
			Result:        models.ResultWin,
			MatchedTeamID: id,
			Positions:     map[int]map[string]string{1: answers(1, "GOOD")},
		})
		assert.ErrorIs(t, err, ErrValidation, id)
	}

	assert.Empty(t, stub.calls)

	left, err := store.ListMatchedTeams(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "m_other", left[0].ID)

	stored, err := f.recs.CurrentTeamGameRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSubmit_SaveFailureNotifies(t *testing.T) {
	stub := &backendStub{}
	f := setup(t, func(*coaching.Generator, repository.Store) coaching.Backend { return stub })
	ctx := context.Background()
	store := f.recs.Store()

	require.NoError(t, store.AddMatchedTeam(ctx, models.MatchedTeam{
		ID: "m1", TeamID: sejong.ID, OpponentTeam: models.TeamRef{ID: "team_thunder", Name: "Thunder"},
	}))
	require.NoError(t, store.AddGameRecord(ctx, models.GameRecord{
		ID: "m1", TeamID: sejong.ID, TeamName: sejong.Name, Opponent: "Thunder",
		GameDate: "2025-09-01", Result: models.ResultLose, FeedbackTag: models.TagStamina,
	}))

	_, err := f.svc.Submit(ctx, Input{
		Opponent:      "Thunder",
		Result:        models.ResultWin,
		MatchedTeamID: "m1",
		Positions:     map[int]map[string]string{2: answers(2, "GOOD")},
	})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	last := f.notes.last()
	assert.Equal(t, notify.LevelError, last.Level)
	assert.Equal(t, "Failed to save game record", last.Title)

	left, err := f.recs.MatchedTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestSubmit_DefaultStyleUsesBulls(t *testing.T) {
	f := setup(t, local)
	ctx := context.Background()

	plain := sejong
	plain.TeamDNA = ""
	require.NoError(t, f.recs.Store().SaveTeam(ctx, plain))

	quick, err := f.svc.SubmitQuick(ctx, QuickInput{Opponent: "Thunder", Result: models.ResultWin, FeedbackTag: models.TagDefense})
	require.NoError(t, err)
	assert.Contains(t, f.gen.Candidates(models.ResultWin, models.TagDefense, models.DNABulls), quick.AIComment)

	rec, err := f.svc.Submit(ctx, Input{
		Opponent:  "Thunder",
		Result:    models.ResultLose,
		Positions: map[int]map[string]string{4: answers(4, "POOR")},
	})
	require.NoError(t, err)
	assert.Contains(t, f.gen.Candidates(models.ResultLose, rec.FeedbackTag, models.DNABulls), rec.AIComment)
}

func TestSubmit_RequiresTeam(t *testing.T) {
	f := setup(t, local)
	ctx := context.Background()
	require.NoError(t, f.recs.Store().SetCurrentUser(ctx, models.User{ID: "u2", Email: "solo@teamup.kr", Nickname: "solo"}))

	_, err := f.svc.Submit(ctx, Input{Opponent: "Thunder", Result: models.ResultWin, Positions: map[int]map[string]string{1: answers(1, "GOOD")}})
	assert.ErrorIs(t, err, records.ErrNoTeam)
}

func TestCollectPosition(t *testing.T) {
	f := setup(t, local)

	got, err := f.svc.CollectPosition(2, answers(2, "GOOD"))
	require.NoError(t, err)
	assert.Equal(t, "OPEN_LOOKS_GOOD", got[coaching.PositionQuestionID])

	_, err = f.svc.CollectPosition(2, map[string]string{"q1": "BALL_MOVEMENT_GOOD"})
	assert.ErrorIs(t, err, ErrValidation)
}
