package matching

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/notify"
	"github.com/untibullet/teamup-coach/internal/records"
	"github.com/untibullet/teamup-coach/internal/repository"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(r.sent))
	for i, n := range r.sent {
		titles[i] = n.Title
	}
	return titles
}

var (
	home = models.Team{ID: "team_sejong", Name: "Sejong Born", Level: "B+"}
	away = models.Team{ID: "team_thunder", Name: "Thunder", Level: "A"}
)

type fixture struct {
	svc   *Service
	store repository.Store
	notes *recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	store, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveTeam(ctx, home))
	require.NoError(t, store.SaveTeam(ctx, away))

	notes := &recorder{}
	return fixture{
		svc:   New(records.New(store), notes, zap.NewNop()),
		store: store,
		notes: notes,
	}
}

func (f fixture) login(t *testing.T, teamID string) {
	t.Helper()
	require.NoError(t, f.store.SetCurrentUser(context.Background(), models.User{
		ID: "u_" + teamID, Email: teamID + "@teamup.kr", Nickname: teamID, CurrentTeamID: teamID,
	}))
}

// incoming отправляет запрос от away к home и возвращается в сессию home
func (f fixture) incoming(t *testing.T, message string) *models.MatchRequest {
	t.Helper()
	f.login(t, away.ID)
	req, err := f.svc.Send(context.Background(), home.ID, message)
	require.NoError(t, err)
	f.login(t, home.ID)
	return req
}

func TestSend(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.incoming(t, "  Saturday 7pm?  ")
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, "Saturday 7pm?", req.Message)
	assert.Equal(t, away.Ref(), req.FromTeam)
	assert.Equal(t, home.Ref(), req.ToTeam)

	_, err := f.svc.Send(ctx, home.ID, "")
	assert.ErrorIs(t, err, ErrSelfRequest)

	_, err = f.svc.Send(ctx, "team_missing", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Equal(t, []string{"Match request sent to Sejong Born"}, f.notes.titles())
}

func TestReceived(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.login(t, home.ID)

	got, err := f.svc.Received(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Requests)
	assert.NotNil(t, got.Requests)
	assert.False(t, got.HasMore)

	f.incoming(t, "first")
	f.incoming(t, "second")

	got, err = f.svc.Received(ctx)
	require.NoError(t, err)
	require.Len(t, got.Requests, 2)
	assert.Equal(t, "second", got.Requests[0].Message)
	assert.True(t, got.HasMore)
}

func TestAccept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.incoming(t, "rematch")

	got, err := f.svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Requests)

	stored, err := f.store.GetMatchRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status)

	matched, err := f.store.ListMatchedTeams(ctx, home.ID)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, away.Ref(), matched[0].OpponentTeam)

	assert.Contains(t, f.notes.titles(), "Accepted match request from Thunder")
}

func TestReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.incoming(t, "")

	got, err := f.svc.Reject(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Requests)

	stored, err := f.store.GetMatchRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)

	matched, err := f.store.ListMatchedTeams(ctx, home.ID)
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestAccept_UnknownIDKeepsList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.incoming(t, "pending one")
	before, err := f.svc.Received(ctx)
	require.NoError(t, err)
	notesBefore := len(f.notes.titles())

	got, err := f.svc.Accept(ctx, "mr_missing")
	require.NoError(t, err)
	assert.Equal(t, before, got)

	stored, err := f.store.GetMatchRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Len(t, f.notes.titles(), notesBefore)
}

func TestTerminalStatusIsFinal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.incoming(t, "")
	_, err := f.svc.Reject(ctx, req.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, req.ID)
	require.NoError(t, err)

	stored, err := f.store.GetMatchRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)

	matched, err := f.store.ListMatchedTeams(ctx, home.ID)
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestAccept_OnlyAddressee(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := f.incoming(t, "")
	f.login(t, away.ID)

	_, err := f.svc.Accept(ctx, req.ID)
	require.NoError(t, err)

	stored, err := f.store.GetMatchRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestRequiresSession(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Received(context.Background())
	assert.ErrorIs(t, err, repository.ErrNotAuthenticated)
}
