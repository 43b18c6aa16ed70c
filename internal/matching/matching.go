// Package matching ведет жизненный цикл запросов на матч между командами:
// pending -> accepted или pending -> rejected, без возврата из конечных состояний.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/notify"
	"github.com/untibullet/teamup-coach/internal/records"
	"github.com/untibullet/teamup-coach/internal/repository"
	"go.uber.org/zap"
)

var ErrSelfRequest = errors.New("team cannot request a match with itself")

type Service struct {
	records  *records.Service
	store    repository.Store
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func New(recs *records.Service, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		records:  recs,
		store:    recs.Store(),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Received список входящих запросов; HasMore включает экран "смотреть все"
type Received struct {
	Requests []models.MatchRequest `json:"requests"`
	HasMore  bool                  `json:"hasMore"`
}

// Send создает запрос от текущей команды команде toTeamID
func (s *Service) Send(ctx context.Context, toTeamID, message string) (*models.MatchRequest, error) {
	from, err := s.records.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}
	if from.ID == toTeamID {
		return nil, ErrSelfRequest
	}

	to, err := s.store.GetTeam(ctx, toTeamID)
	if err != nil {
		return nil, err
	}

	req := models.MatchRequest{
		ID:        uuid.NewString(),
		FromTeam:  from.Ref(),
		ToTeam:    to.Ref(),
		Message:   strings.TrimSpace(message),
		Status:    models.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateMatchRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create match request: %w", err)
	}

	s.logger.Info("match request sent",
		zap.String("request_id", req.ID),
		zap.String("from_team", from.ID),
		zap.String("to_team", to.ID))
	s.notifier.Notify(ctx, notify.Success("Match request sent to "+to.Name, req.Message, from.ID))

	return &req, nil
}

// Received возвращает входящие запросы текущей команды, новые первыми
func (s *Service) Received(ctx context.Context) (*Received, error) {
	reqs, err := s.records.ReceivedMatchRequests(ctx)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []models.MatchRequest{}
	}
	return &Received{Requests: reqs, HasMore: len(reqs) > 1}, nil
}

// Accept принимает запрос и запоминает соперника для будущей записи игры
func (s *Service) Accept(ctx context.Context, requestID string) (*Received, error) {
	return s.transition(ctx, requestID, models.StatusAccepted)
}

// Reject отклоняет запрос
func (s *Service) Reject(ctx context.Context, requestID string) (*Received, error) {
	return s.transition(ctx, requestID, models.StatusRejected)
}

// transition меняет статус только у ожидающего запроса, адресованного текущей команде.
// Иначе состояние не меняется и возвращается актуальный список без ошибки.
func (s *Service) transition(ctx context.Context, requestID string, status models.MatchRequestStatus) (*Received, error) {
	team, err := s.records.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}

	req, err := s.store.GetMatchRequest(ctx, requestID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Warn("match request not found", zap.String("request_id", requestID))
		return s.Received(ctx)
	case err != nil:
		return nil, err
	}

	if req.Status != models.StatusPending || req.ToTeam.ID != team.ID {
		s.logger.Warn("match request is not pending for current team",
			zap.String("request_id", requestID),
			zap.String("status", string(req.Status)))
		return s.Received(ctx)
	}

	if err := s.store.UpdateMatchRequestStatus(ctx, requestID, status); err != nil {
		return nil, fmt.Errorf("failed to update match request: %w", err)
	}

	var title string
	if status == models.StatusAccepted {
		matched := models.MatchedTeam{
			ID:           uuid.NewString(),
			TeamID:       team.ID,
			OpponentTeam: req.FromTeam,
			CreatedAt:    s.now().UTC(),
		}
		if err := s.store.AddMatchedTeam(ctx, matched); err != nil {
			return nil, fmt.Errorf("failed to save matched team: %w", err)
		}
		title = "Accepted match request from " + req.FromTeam.Name
	} else {
		title = "Rejected match request from " + req.FromTeam.Name
	}

	s.logger.Info("match request updated",
		zap.String("request_id", requestID),
		zap.String("status", string(status)))
	s.notifier.Notify(ctx, notify.Success(title, "", team.ID))

	return s.Received(ctx)
}
