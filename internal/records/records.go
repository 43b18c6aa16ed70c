// Package records дает представления хранилища в разрезе текущей команды пользователя.
package records

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/repository"
)

// ErrNoTeam у текущего пользователя не выбрана команда
var ErrNoTeam = errors.New("current user has no team")

type Service struct {
	store repository.Store
}

func New(store repository.Store) *Service {
	return &Service{store: store}
}

// Store возвращает нижележащее хранилище
func (s *Service) Store() repository.Store {
	return s.store
}

// CurrentUser возвращает repository.ErrNotAuthenticated, если сессии нет
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	return s.store.GetCurrentUser(ctx)
}

// CurrentTeam возвращает команду текущего пользователя
func (s *Service) CurrentTeam(ctx context.Context) (*models.Team, error) {
	user, err := s.store.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.CurrentTeamID == "" {
		return nil, ErrNoTeam
	}

	team, err := s.store.GetTeam(ctx, user.CurrentTeamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoTeam
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current team: %w", err)
	}
	return team, nil
}

// CurrentTeamGameRecords возвращает игры текущей команды в порядке добавления
func (s *Service) CurrentTeamGameRecords(ctx context.Context) ([]models.GameRecord, error) {
	team, err := s.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetTeamGameRecords(ctx, team.ID)
}

// CurrentTeamStats считает статистику текущей команды
func (s *Service) CurrentTeamStats(ctx context.Context) (models.TeamStats, error) {
	records, err := s.CurrentTeamGameRecords(ctx)
	if err != nil {
		return models.TeamStats{}, err
	}
	return Stats(records), nil
}

// Stats: ничья входит в общее число игр, но не в победы и поражения
func Stats(records []models.GameRecord) models.TeamStats {
	var st models.TeamStats
	for _, rec := range records {
		st.TotalGames++
		switch rec.Result {
		case models.ResultWin:
			st.Wins++
		case models.ResultLose:
			st.Losses++
		case models.ResultDraw:
			st.Draws++
		}
	}
	st.WinRate = WinRate(st.Wins, st.TotalGames)
	return st
}

// WinRate процент побед с округлением до целого; 0 при отсутствии игр
func WinRate(wins, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(wins) / float64(total) * 100))
}

// ReceivedMatchRequests возвращает ожидающие ответа запросы к текущей команде, новые первыми
func (s *Service) ReceivedMatchRequests(ctx context.Context) ([]models.MatchRequest, error) {
	team, err := s.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListMatchRequests(ctx, team.ID, models.StatusPending)
}

// MatchedTeams возвращает соперников текущей команды по принятым запросам
func (s *Service) MatchedTeams(ctx context.Context) ([]models.MatchedTeam, error) {
	team, err := s.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListMatchedTeams(ctx, team.ID)
}

// MatchedTeam ищет связь с соперником среди связей текущей команды.
// Чужая и отсутствующая связь одинаково дают repository.ErrNotFound.
func (s *Service) MatchedTeam(ctx context.Context, matchedID string) (*models.MatchedTeam, error) {
	matched, err := s.MatchedTeams(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range matched {
		if m.ID == matchedID {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

// RemoveMatchedTeam удаляет связь текущей команды с соперником.
// Отсутствующая или чужая связь не удаляется и не считается ошибкой.
func (s *Service) RemoveMatchedTeam(ctx context.Context, matchedID string) (bool, error) {
	team, err := s.CurrentTeam(ctx)
	if err != nil {
		return false, err
	}
	return s.store.DeleteMatchedTeam(ctx, team.ID, matchedID)
}
