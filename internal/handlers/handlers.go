package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/untibullet/teamup-coach/internal/coaching"
	"github.com/untibullet/teamup-coach/internal/feedback"
	"github.com/untibullet/teamup-coach/internal/matching"
	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/records"
	"github.com/untibullet/teamup-coach/internal/repository"
	"go.uber.org/zap"
)

// Коды ошибок для API
const (
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeNoTeam           = "NO_TEAM"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeSelfRequest      = "SELF_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTeamExists       = "TEAM_EXISTS"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeBackend          = "BACKEND_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

type Handler struct {
	records  *records.Service
	matching *matching.Service
	feedback *feedback.Service
	hub      http.Handler
	validate *validator.Validate
	logger   *zap.Logger
}

// New создает новый экземпляр обработчика; hub может быть nil, тогда /ws не регистрируется
func New(
	recs *records.Service,
	match *matching.Service,
	fb *feedback.Service,
	hub http.Handler,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		records:  recs,
		matching: match,
		feedback: fb,
		hub:      hub,
		validate: validator.New(),
		logger:   logger,
	}
}

// ErrorResponse представляет структуру ошибки API
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newErrorResponse создает стандартный ответ с ошибкой
func newErrorResponse(code, message string) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	return resp
}

// classify сопоставляет ошибку сервисов HTTP-статусу и коду API
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, repository.ErrNotAuthenticated):
		return http.StatusUnauthorized, ErrCodeNotAuthenticated, "login required"
	case errors.Is(err, records.ErrNoTeam):
		return http.StatusBadRequest, ErrCodeNoTeam, "current user has no team"
	case errors.Is(err, feedback.ErrValidation), errors.Is(err, coaching.ErrInvalidAnswers):
		return http.StatusBadRequest, ErrCodeValidation, err.Error()
	case errors.Is(err, matching.ErrSelfRequest):
		return http.StatusBadRequest, ErrCodeSelfRequest, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "resource not found"
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, ErrCodeAlreadyExists, "resource already exists"
	case errors.Is(err, feedback.ErrBackend):
		return http.StatusBadGateway, ErrCodeBackend, err.Error()
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal error"
}

// fail логирует ошибку операции и отвечает клиенту
func (h *Handler) fail(c echo.Context, op string, err error) error {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+": ошибка обработки запроса", zap.Error(err))
	} else {
		h.logger.Warn(op+": запрос отклонен", zap.String("code", code), zap.Error(err))
	}
	return c.JSON(status, newErrorResponse(code, message))
}

func (h *Handler) badRequest(c echo.Context, op string, err error) error {
	h.logger.Warn(op+": некорректные данные запроса", zap.Error(err))
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" failed on "+fe.Tag())
		}
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, strings.Join(fields, "; ")))
	}
	return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "invalid request body"))
}

// Login делает пользователя текущим для клиента
func (h *Handler) Login(c echo.Context) error {
	h.logger.Info("Login: начало обработки запроса")

	var req struct {
		ID            string `json:"id" validate:"required"`
		Email         string `json:"email" validate:"required,email"`
		Nickname      string `json:"nickname" validate:"required"`
		MainPosition  string `json:"mainPosition"`
		CurrentTeamID string `json:"currentTeamId"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "Login", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return h.badRequest(c, "Login", err)
	}

	user := models.User{
		ID:            req.ID,
		Email:         req.Email,
		Nickname:      req.Nickname,
		MainPosition:  req.MainPosition,
		CurrentTeamID: req.CurrentTeamID,
	}
	if err := h.records.Store().SetCurrentUser(c.Request().Context(), user); err != nil {
		return h.fail(c, "Login", err)
	}

	h.logger.Info("Login: пользователь вошел", zap.String("user_id", user.ID), zap.String("team_id", user.CurrentTeamID))
	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}

// GetMe возвращает текущего пользователя и его команду, если она выбрана
func (h *Handler) GetMe(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.records.CurrentUser(ctx)
	if err != nil {
		return h.fail(c, "GetMe", err)
	}

	response := map[string]interface{}{"user": user}
	team, err := h.records.CurrentTeam(ctx)
	switch {
	case err == nil:
		response["team"] = team
	case !errors.Is(err, records.ErrNoTeam):
		return h.fail(c, "GetMe", err)
	}

	return c.JSON(http.StatusOK, response)
}

// CreateTeam создает новую команду
func (h *Handler) CreateTeam(c echo.Context) error {
	h.logger.Info("CreateTeam: начало обработки запроса")

	var req models.Team
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CreateTeam", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return h.badRequest(c, "CreateTeam", err)
	}

	ctx := c.Request().Context()
	if _, err := h.records.Store().GetTeam(ctx, req.ID); err == nil {
		h.logger.Warn("CreateTeam: команда уже существует", zap.String("team_id", req.ID))
		return c.JSON(http.StatusConflict, newErrorResponse(ErrCodeTeamExists, "team_id already exists"))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return h.fail(c, "CreateTeam", err)
	}

	if err := h.records.Store().SaveTeam(ctx, req); err != nil {
		return h.fail(c, "CreateTeam", err)
	}

	h.logger.Info("CreateTeam: команда успешно создана", zap.String("team_id", req.ID), zap.String("name", req.Name))
	return c.JSON(http.StatusCreated, map[string]interface{}{"team": req})
}

// GetTeam получает команду по ID
func (h *Handler) GetTeam(c echo.Context) error {
	teamID := c.QueryParam("team_id")
	h.logger.Info("GetTeam: получение команды", zap.String("team_id", teamID))

	if teamID == "" {
		h.logger.Warn("GetTeam: параметр team_id отсутствует")
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "team_id parameter is required"))
	}

	team, err := h.records.Store().GetTeam(c.Request().Context(), teamID)
	if err != nil {
		return h.fail(c, "GetTeam", err)
	}

	return c.JSON(http.StatusOK, team)
}

// SendMatchRequest предлагает матч другой команде
func (h *Handler) SendMatchRequest(c echo.Context) error {
	h.logger.Info("SendMatchRequest: начало обработки запроса")

	var req struct {
		ToTeamID string `json:"toTeamId" validate:"required"`
		Message  string `json:"message" validate:"max=500"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "SendMatchRequest", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return h.badRequest(c, "SendMatchRequest", err)
	}

	mr, err := h.matching.Send(c.Request().Context(), req.ToTeamID, req.Message)
	if err != nil {
		return h.fail(c, "SendMatchRequest", err)
	}

	h.logger.Info("SendMatchRequest: запрос отправлен", zap.String("request_id", mr.ID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"matchRequest": mr})
}

// GetReceivedMatchRequests возвращает входящие запросы текущей команды
func (h *Handler) GetReceivedMatchRequests(c echo.Context) error {
	received, err := h.matching.Received(c.Request().Context())
	if err != nil {
		return h.fail(c, "GetReceivedMatchRequests", err)
	}
	return c.JSON(http.StatusOK, received)
}

type matchRequestAction struct {
	RequestID string `json:"requestId" validate:"required"`
}

// AcceptMatchRequest принимает запрос; неизвестный ID не меняет список
func (h *Handler) AcceptMatchRequest(c echo.Context) error {
	var req matchRequestAction
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "AcceptMatchRequest", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return h.badRequest(c, "AcceptMatchRequest", err)
	}

	h.logger.Info("AcceptMatchRequest: принятие запроса", zap.String("request_id", req.RequestID))

	received, err := h.matching.Accept(c.Request().Context(), req.RequestID)
	if err != nil {
		return h.fail(c, "AcceptMatchRequest", err)
	}
	return c.JSON(http.StatusOK, received)
}

// RejectMatchRequest отклоняет запрос
func (h *Handler) RejectMatchRequest(c echo.Context) error {
	var req matchRequestAction
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "RejectMatchRequest", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return h.badRequest(c, "RejectMatchRequest", err)
	}

	h.logger.Info("RejectMatchRequest: отклонение запроса", zap.String("request_id", req.RequestID))

	received, err := h.matching.Reject(c.Request().Context(), req.RequestID)
	if err != nil {
		return h.fail(c, "RejectMatchRequest", err)
	}
	return c.JSON(http.StatusOK, received)
}

// GetMatchedTeams возвращает соперников по принятым запросам
func (h *Handler) GetMatchedTeams(c echo.Context) error {
	matched, err := h.records.MatchedTeams(c.Request().Context())
	if err != nil {
		return h.fail(c, "GetMatchedTeams", err)
	}
	if matched == nil {
		matched = []models.MatchedTeam{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"matchedTeams": matched})
}

// GetQuestions возвращает анкету позиции
func (h *Handler) GetQuestions(c echo.Context) error {
	position, err := strconv.Atoi(c.QueryParam("position"))
	if err != nil {
		h.logger.Warn("GetQuestions: некорректный параметр position", zap.String("position", c.QueryParam("position")))
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "position parameter must be a number 1..5"))
	}

	pos, err := coaching.LookupPosition(position)
	if err != nil {
		return h.fail(c, "GetQuestions", err)
	}
	questions, err := coaching.Questions(position)
	if err != nil {
		return h.fail(c, "GetQuestions", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"position":  pos,
		"questions": questions,
	})
}

// CollectPosition проверяет ответы одной позиции до отправки отзыва
func (h *Handler) CollectPosition(c echo.Context) error {
	var req struct {
		Position int               `json:"position"`
		Answers  map[string]string `json:"answers"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CollectPosition", err)
	}

	answers, err := h.feedback.CollectPosition(req.Position, req.Answers)
	if err != nil {
		return h.fail(c, "CollectPosition", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"position": req.Position,
		"answers":  answers,
	})
}

// SubmitQuickFeedback записывает игру с одним тегом разбора
func (h *Handler) SubmitQuickFeedback(c echo.Context) error {
	h.logger.Info("SubmitQuickFeedback: начало обработки запроса")

	var req feedback.QuickInput
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "SubmitQuickFeedback", err)
	}

	rec, err := h.feedback.SubmitQuick(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "SubmitQuickFeedback", err)
	}

	h.logger.Info("SubmitQuickFeedback: игра записана", zap.String("record_id", rec.ID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"record": rec})
}

// SubmitFeedback записывает игру с отзывами по позициям через сервис коучинга
func (h *Handler) SubmitFeedback(c echo.Context) error {
	h.logger.Info("SubmitFeedback: начало обработки запроса")

	var req feedback.Input
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "SubmitFeedback", err)
	}

	h.logger.Info("SubmitFeedback: отправка отзыва",
		zap.String("opponent", req.Opponent),
		zap.String("result", string(req.Result)),
		zap.Int("positions", len(req.Positions)),
		zap.String("matched_id", req.MatchedTeamID))

	rec, err := h.feedback.Submit(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "SubmitFeedback", err)
	}

	h.logger.Info("SubmitFeedback: игра записана", zap.String("record_id", rec.ID), zap.String("tag", string(rec.FeedbackTag)))
	return c.JSON(http.StatusCreated, map[string]interface{}{"record": rec})
}

// GetGameRecords возвращает игры текущей команды
func (h *Handler) GetGameRecords(c echo.Context) error {
	recs, err := h.records.CurrentTeamGameRecords(c.Request().Context())
	if err != nil {
		return h.fail(c, "GetGameRecords", err)
	}
	if recs == nil {
		recs = []models.GameRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"records": recs})
}

// GetStats возвращает статистику текущей команды
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.records.CurrentTeamStats(c.Request().Context())
	if err != nil {
		return h.fail(c, "GetStats", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// GetAppData возвращает полный снимок состояния
func (h *Handler) GetAppData(c echo.Context) error {
	data, err := h.records.Store().GetAppData(c.Request().Context())
	if err != nil {
		return h.fail(c, "GetAppData", err)
	}
	return c.JSON(http.StatusOK, data)
}

// SetAppData целиком заменяет сохраненное состояние
func (h *Handler) SetAppData(c echo.Context) error {
	h.logger.Info("SetAppData: начало обработки запроса")

	var data models.AppData
	if err := c.Bind(&data); err != nil {
		return h.badRequest(c, "SetAppData", err)
	}

	if err := h.records.Store().SetAppData(c.Request().Context(), data); err != nil {
		return h.fail(c, "SetAppData", err)
	}

	h.logger.Info("SetAppData: состояние заменено",
		zap.Int("teams", len(data.Teams)),
		zap.Int("game_records", len(data.GameRecords)),
		zap.Int("match_requests", len(data.MatchRequests)))
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterRoutes регистрирует все маршруты API
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Session
	e.POST("/session/login", h.Login)
	e.GET("/users/me", h.GetMe)

	// Teams
	e.POST("/team/add", h.CreateTeam)
	e.GET("/team/get", h.GetTeam)

	// Match requests
	e.POST("/matchRequest/send", h.SendMatchRequest)
	e.GET("/matchRequest/received", h.GetReceivedMatchRequests)
	e.POST("/matchRequest/accept", h.AcceptMatchRequest)
	e.POST("/matchRequest/reject", h.RejectMatchRequest)
	e.GET("/matched/list", h.GetMatchedTeams)

	// Coaching
	e.GET("/coaching/questions", h.GetQuestions)
	e.POST("/coaching/position", h.CollectPosition)
	e.POST("/coaching/quick", h.SubmitQuickFeedback)
	e.POST("/coaching/feedback", h.SubmitFeedback)
	e.GET("/coaching/records", h.GetGameRecords)
	e.GET("/coaching/stats", h.GetStats)

	// Snapshot
	e.GET("/appData/get", h.GetAppData)
	e.POST("/appData/set", h.SetAppData)

	// Notifications
	if h.hub != nil {
		e.GET("/ws", echo.WrapHandler(h.hub))
	}
}
