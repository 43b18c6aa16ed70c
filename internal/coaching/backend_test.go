package coaching

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/teamup-coach/internal/models"
)

type teamsStub map[string]models.Team

func (s teamsStub) GetTeam(_ context.Context, id string) (*models.Team, error) {
	t, ok := s[id]
	if !ok {
		return nil, errors.New("team not found")
	}
	return &t, nil
}

func TestLocalBackend(t *testing.T) {
	gen := NewGenerator(seeded(9), models.DNABulls)
	teams := teamsStub{"t1": {ID: "t1", Name: "Sejong Born", TeamDNA: models.DNAWarriors}}
	b := NewLocalBackend(gen, teams)
	ctx := context.Background()

	fbs := []models.PositionFeedback{{
		PositionNumber: 2,
		Tags:           []string{"BALL_MOVEMENT_GOOD", "DEFENSIVE_ROTATION_AVERAGE", "COMMUNICATION_AVERAGE", "OPEN_LOOKS_GOOD"},
	}}
	fr, err := b.SubmitFeedback(ctx, "game-1", FeedbackRequest{TeamID: "t1", Result: models.ResultWin, PositionFeedbacks: fbs})
	require.NoError(t, err)
	assert.Equal(t, "game-1", fr.GameID)
	assert.Equal(t, "t1", fr.TeamID)

	report, err := b.CreateReport(ctx, fr.GameID, fr.TeamID)
	require.NoError(t, err)
	assert.Contains(t, gen.Candidates(models.ResultWin, models.TagOffense, models.DNAWarriors), report.AIComment)

	_, err = b.CreateReport(ctx, fr.GameID, fr.TeamID)
	assert.ErrorIs(t, err, ErrUnknownGame)

	_, err = b.SubmitFeedback(ctx, "", FeedbackRequest{TeamID: "t1"})
	assert.Error(t, err)
}

func TestLocalBackend_ForgetsStaleFeedback(t *testing.T) {
	gen := NewGenerator(seeded(5), models.DNABulls)
	b := NewLocalBackend(gen, teamsStub{"t1": {ID: "t1", Name: "Sejong Born"}})
	clock := time.Date(2025, 9, 13, 20, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	req := FeedbackRequest{TeamID: "t1", Result: models.ResultLose}
	_, err := b.SubmitFeedback(ctx, "abandoned", req)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Pending())

	clock = clock.Add(PendingTTL + time.Second)
	_, err = b.SubmitFeedback(ctx, "fresh", req)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Pending())

	_, err = b.CreateReport(ctx, "abandoned", "t1")
	assert.ErrorIs(t, err, ErrUnknownGame)

	_, err = b.CreateReport(ctx, "fresh", "t1")
	require.NoError(t, err)
	assert.Zero(t, b.Pending())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = b.SubmitFeedback(cancelled, "late", req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.Pending())
}

func TestRemoteBackend(t *testing.T) {
	created := time.Date(2025, 7, 1, 18, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch r.URL.Path {
		case "/api/games/g1/feedback":
			var req FeedbackRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "t1", req.TeamID)
			assert.Equal(t, models.ResultLose, req.Result)
			assert.Len(t, req.PositionFeedbacks, 1)

			json.NewEncoder(w).Encode(FeedbackResponse{GameID: "g1", TeamID: "t1", CreatedAt: created})
		case "/api/games/g1/report":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "t1", body["teamId"])

			json.NewEncoder(w).Encode(map[string]any{"gameId": "g1", "aiComment": "Box out harder.", "createdAt": created})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := NewRemoteBackend(srv.URL+"/api/", time.Second)
	ctx := context.Background()

	fr, err := b.SubmitFeedback(ctx, "g1", FeedbackRequest{
		TeamID: "t1", Result: models.ResultLose,
		PositionFeedbacks: []models.PositionFeedback{{PositionNumber: 4, Tags: []string{"BOX_OUT_POOR"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", fr.GameID)
	assert.True(t, created.Equal(fr.CreatedAt))

	report, err := b.CreateReport(ctx, "g1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Box out harder.", report.AIComment)
	assert.Equal(t, "t1", report.TeamID)
}

func TestRemoteBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"nested error", http.StatusBadRequest, `{"error":{"code":"BAD","message":"invalid team"}}`, "invalid team"},
		{"flat message", http.StatusNotFound, `{"message":"game not found"}`, "game not found"},
		{"plain text", http.StatusInternalServerError, "boom\n", "boom"},
		{"empty body", http.StatusServiceUnavailable, "", http.StatusText(http.StatusServiceUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := NewRemoteBackend(srv.URL, time.Second)
			_, err := b.SubmitFeedback(context.Background(), "g1", FeedbackRequest{TeamID: "t1"})
			require.Error(t, err)

			var remoteErr *RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.status, remoteErr.StatusCode)
			assert.Equal(t, tt.message, remoteErr.Message)
		})
	}
}

func TestRemoteBackend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	b := NewRemoteBackend(srv.URL, 50*time.Millisecond)
	_, err := b.CreateReport(context.Background(), "g1", "t1")
	assert.Error(t, err)
}
