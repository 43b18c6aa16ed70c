// repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/untibullet/teamup-coach/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Store хранилище состояния одного клиента: пользователь, команды, игры и запросы на матч
type Store interface {
	GetCurrentUser(ctx context.Context) (*models.User, error)
	SetCurrentUser(ctx context.Context, user models.User) error

	SaveTeam(ctx context.Context, team models.Team) error
	GetTeam(ctx context.Context, teamID string) (*models.Team, error)

	AddGameRecord(ctx context.Context, record models.GameRecord) error
	GetTeamGameRecords(ctx context.Context, teamID string) ([]models.GameRecord, error)

	CreateMatchRequest(ctx context.Context, req models.MatchRequest) error
	GetMatchRequest(ctx context.Context, requestID string) (*models.MatchRequest, error)
	ListMatchRequests(ctx context.Context, toTeamID string, status models.MatchRequestStatus) ([]models.MatchRequest, error)
	UpdateMatchRequestStatus(ctx context.Context, requestID string, status models.MatchRequestStatus) error

	AddMatchedTeam(ctx context.Context, matched models.MatchedTeam) error
	ListMatchedTeams(ctx context.Context, teamID string) ([]models.MatchedTeam, error)
	DeleteMatchedTeam(ctx context.Context, teamID, matchedID string) (bool, error)

	GetAppData(ctx context.Context) (*models.AppData, error)
	SetAppData(ctx context.Context, data models.AppData) error

	Close() error
}

// checkTerminalStatus проверяет, что запрос переводится в конечный статус
func checkTerminalStatus(status models.MatchRequestStatus) error {
	if !status.Terminal() {
		return ErrInvalidInput
	}
	return nil
}

// unixNano и fromUnixNano хранят время в SQLite как целое число
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
