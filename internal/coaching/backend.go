package coaching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/untibullet/teamup-coach/internal/models"
)

// ErrUnknownGame отчет запрошен для игры, по которой не было отзыва
var ErrUnknownGame = errors.New("no feedback submitted for game")

// FeedbackRequest отзыв команды о завершенной игре
type FeedbackRequest struct {
	TeamID            string                    `json:"teamId"`
	Result            models.GameResult         `json:"result"`
	PositionFeedbacks []models.PositionFeedback `json:"positionFeedbacks"`
}

type FeedbackResponse struct {
	GameID    string    `json:"gameId"`
	TeamID    string    `json:"teamId"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReportResponse struct {
	GameID    string    `json:"gameId"`
	TeamID    string    `json:"teamId"`
	AIComment string    `json:"aiComment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backend сервис AI-коучинга: сначала принимает отзыв, затем строит по нему отчет
type Backend interface {
	SubmitFeedback(ctx context.Context, gameID string, req FeedbackRequest) (*FeedbackResponse, error)
	CreateReport(ctx context.Context, gameID, teamID string) (*ReportResponse, error)
}

// TeamLookup источник стиля команды для локальной генерации
type TeamLookup interface {
	GetTeam(ctx context.Context, teamID string) (*models.Team, error)
}

// PendingTTL сколько отзыв ждет запроса отчета, прежде чем будет забыт
const PendingTTL = 10 * time.Minute

type pendingFeedback struct {
	req FeedbackRequest
	at  time.Time
}

// LocalBackend заменяет удаленный сервис, пока он не настроен:
// комментарий строится генератором по тегу, выведенному из отзывов позиций
type LocalBackend struct {
	gen   *Generator
	teams TeamLookup
	now   func() time.Time

	mu        sync.Mutex
	submitted map[string]pendingFeedback
}

func NewLocalBackend(gen *Generator, teams TeamLookup) *LocalBackend {
	return &LocalBackend{
		gen:       gen,
		teams:     teams,
		now:       time.Now,
		submitted: make(map[string]pendingFeedback),
	}
}

func (b *LocalBackend) SubmitFeedback(ctx context.Context, gameID string, req FeedbackRequest) (*FeedbackResponse, error) {
	if gameID == "" || req.TeamID == "" {
		return nil, fmt.Errorf("game id and team id are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := b.now()
	b.mu.Lock()
	b.pruneLocked(now)
	b.submitted[gameID] = pendingFeedback{req: req, at: now}
	b.mu.Unlock()

	return &FeedbackResponse{GameID: gameID, TeamID: req.TeamID, CreatedAt: now.UTC()}, nil
}

// pruneLocked удаляет отзывы, отчет по которым так и не запросили
func (b *LocalBackend) pruneLocked(now time.Time) {
	for id, p := range b.submitted {
		if now.Sub(p.at) > PendingTTL {
			delete(b.submitted, id)
		}
	}
}

// Pending число отзывов, ожидающих отчета
func (b *LocalBackend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submitted)
}

func (b *LocalBackend) CreateReport(ctx context.Context, gameID, teamID string) (*ReportResponse, error) {
	now := b.now()
	b.mu.Lock()
	b.pruneLocked(now)
	p, ok := b.submitted[gameID]
	if ok {
		delete(b.submitted, gameID)
	}
	b.mu.Unlock()
	req := p.req
	if !ok || req.TeamID != teamID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
	}

	team, err := b.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team for report: %w", err)
	}

	tag := FocusTag(req.Result, req.PositionFeedbacks)
	return &ReportResponse{
		GameID:    gameID,
		TeamID:    teamID,
		AIComment: b.gen.Generate(req.Result, tag, team.TeamDNA),
		CreatedAt: b.now().UTC(),
	}, nil
}
