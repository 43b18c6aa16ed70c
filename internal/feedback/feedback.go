// Package feedback записывает сыгранные игры и получает по ним комментарий тренера.
//
// Основной сценарий Submit собирает ответы по позициям и проходит через сервис
// коучинга: отзыв, затем отчет, затем локальная запись. SubmitQuick с одним тегом
// оставлен для старых клиентов.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/untibullet/teamup-coach/internal/coaching"
	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/notify"
	"github.com/untibullet/teamup-coach/internal/records"
	"github.com/untibullet/teamup-coach/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrBackend    = errors.New("coaching backend failed")
)

const dateLayout = "2006-01-02"

// QuickInput игра с одним тегом разбора
type QuickInput struct {
	Opponent    string             `json:"opponent" validate:"required"`
	GameDate    string             `json:"gameDate" validate:"omitempty,datetime=2006-01-02"`
	Result      models.GameResult  `json:"result" validate:"required,oneof=WIN LOSE DRAW"`
	FeedbackTag models.FeedbackTag `json:"feedbackTag" validate:"required,oneof=DEFENSE OFFENSE MENTAL TEAMWORK STAMINA"`
}

// Input игра с ответами по позициям: номер позиции -> ID вопроса -> код ответа
type Input struct {
	Opponent      string                    `json:"opponent" validate:"required"`
	GameDate      string                    `json:"gameDate" validate:"omitempty,datetime=2006-01-02"`
	Result        models.GameResult         `json:"result" validate:"required,oneof=WIN LOSE DRAW"`
	MatchedTeamID string                    `json:"matchedTeamId"`
	Positions     map[int]map[string]string `json:"positions"`
}

type Service struct {
	records  *records.Service
	store    repository.Store
	gen      *coaching.Generator
	backend  coaching.Backend
	notifier notify.Notifier
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func New(
	recs *records.Service,
	gen *coaching.Generator,
	backend coaching.Backend,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		records:  recs,
		store:    recs.Store(),
		gen:      gen,
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SubmitQuick записывает игру с одним тегом и шаблонным комментарием.
//
// Deprecated: используйте Submit с ответами по позициям.
func (s *Service) SubmitQuick(ctx context.Context, in QuickInput) (*models.GameRecord, error) {
	team, err := s.records.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}

	in.Opponent = strings.TrimSpace(in.Opponent)
	if err := s.check(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := models.GameRecord{
		ID:          newRecordID(),
		TeamID:      team.ID,
		TeamName:    team.Name,
		Opponent:    in.Opponent,
		GameDate:    gameDateOrToday(in.GameDate, now),
		Result:      in.Result,
		FeedbackTag: in.FeedbackTag,
		AIComment:   s.gen.Generate(in.Result, in.FeedbackTag, team.TeamDNA),
		CreatedAt:   now,
	}

	if err := s.store.AddGameRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save game record: %w", err)
	}

	s.logger.Info("game record saved",
		zap.String("record_id", rec.ID),
		zap.String("team_id", team.ID),
		zap.String("result", string(rec.Result)),
		zap.String("tag", string(rec.FeedbackTag)))

	return &rec, nil
}

// Submit отправляет отзыв по позициям в сервис коучинга, получает отчет и только
// после обоих успешных вызовов сохраняет игру. Связь с соперником, по которой
// игра была сыграна, после записи удаляется.
func (s *Service) Submit(ctx context.Context, in Input) (*models.GameRecord, error) {
	team, err := s.records.CurrentTeam(ctx)
	if err != nil {
		return nil, err
	}

	in.Opponent = strings.TrimSpace(in.Opponent)
	if err := s.check(in); err != nil {
		return nil, err
	}

	draft, err := collect(in.Positions)
	if err != nil {
		return nil, err
	}

	feedbacks := draft.PositionFeedbacks()

	gameID := newGameID()
	if in.MatchedTeamID != "" {
		matched, err := s.records.MatchedTeam(ctx, in.MatchedTeamID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: matched team %s not found", ErrValidation, in.MatchedTeamID)
		}
		if err != nil {
			return nil, err
		}
		gameID = matched.ID
	}

	feedbackResp, err := s.backend.SubmitFeedback(ctx, gameID, coaching.FeedbackRequest{
		TeamID:            team.ID,
		Result:            in.Result,
		PositionFeedbacks: feedbacks,
	})
	if err != nil {
		return nil, s.backendFailure(ctx, "Failed to submit feedback", team.ID, err)
	}

	report, err := s.backend.CreateReport(ctx, feedbackResp.GameID, feedbackResp.TeamID)
	if err != nil {
		return nil, s.backendFailure(ctx, "Failed to create AI report", team.ID, err)
	}

	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	rec := models.GameRecord{
		ID:                report.GameID,
		TeamID:            team.ID,
		TeamName:          team.Name,
		Opponent:          in.Opponent,
		GameDate:          gameDateOrToday(in.GameDate, s.now().UTC()),
		Result:            in.Result,
		FeedbackTag:       coaching.FocusTag(in.Result, feedbacks),
		PositionFeedbacks: feedbacks,
		AIComment:         report.AIComment,
		CreatedAt:         createdAt,
	}

	if err := s.store.AddGameRecord(ctx, rec); err != nil {
		err = fmt.Errorf("failed to save game record: %w", err)
		s.reportFailure(ctx, "Failed to save game record", team.ID, err)
		return nil, err
	}

	if in.MatchedTeamID != "" {
		removed, err := s.records.RemoveMatchedTeam(ctx, in.MatchedTeamID)
		if err != nil {
			s.logger.Warn("failed to remove matched team", zap.String("matched_id", in.MatchedTeamID), zap.Error(err))
		} else if removed {
			s.logger.Info("matched team completed", zap.String("matched_id", in.MatchedTeamID))
		}
	}

	s.logger.Info("game feedback recorded",
		zap.String("record_id", rec.ID),
		zap.String("team_id", team.ID),
		zap.Int("positions", len(rec.PositionFeedbacks)))
	s.notifier.Notify(ctx, notify.Success("AI report created", excerpt(rec.AIComment, 50), team.ID))

	return &rec, nil
}

// CollectPosition проверяет ответы одной позиции, не записывая игру
func (s *Service) CollectPosition(position int, answers map[string]string) (map[string]string, error) {
	collected, err := coaching.Collect(position, answers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return collected, nil
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func collect(positions map[int]map[string]string) (*coaching.Draft, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: feedback for at least one position is required", ErrValidation)
	}

	numbers := make([]int, 0, len(positions))
	for n := range positions {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	draft := coaching.NewDraft()
	for _, n := range numbers {
		if err := draft.Add(n, positions[n]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return draft, nil
}

func (s *Service) backendFailure(ctx context.Context, title, teamID string, err error) error {
	s.reportFailure(ctx, title, teamID, err)
	return fmt.Errorf("%w: %w", ErrBackend, err)
}

// reportFailure логирует сбой отправки игры и сообщает о нем пользователю
func (s *Service) reportFailure(ctx context.Context, title, teamID string, err error) {
	s.logger.Error(title, zap.String("team_id", teamID), zap.Error(err))
	s.notifier.Notify(ctx, notify.Error(title, err, teamID))
}

func gameDateOrToday(date string, now time.Time) string {
	if date == "" {
		return now.Format(dateLayout)
	}
	return date
}

// newRecordID и newGameID упорядочены по времени создания
func newRecordID() string {
	return "rec_" + newGameID()
}

func newGameID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
