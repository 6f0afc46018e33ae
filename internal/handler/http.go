package handler

import (
	"errors"
	"net/http"

	"storybot-server/internal/models"
	"storybot-server/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StoryHandler обрабатывает HTTP запросы движка историй. API внутреннее:
// вызывается ботом-шлюзом, который уже аутентифицировал пользователей Discord.
type StoryHandler struct {
	storyService      service.StoryService
	entryService      service.EntryService
	validate          *validator.Validate
	logger            *zap.Logger
	interServiceToken string
}

// NewStoryHandler создает новый StoryHandler.
func NewStoryHandler(storyService service.StoryService, entryService service.EntryService, interServiceToken string, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		storyService:      storyService,
		entryService:      entryService,
		validate:          validator.New(),
		logger:            logger.Named("StoryHandler"),
		interServiceToken: interServiceToken,
	}
}

// RegisterRoutes регистрирует маршруты движка.
func (h *StoryHandler) RegisterRoutes(e *echo.Echo) {
	internalGroup := e.Group("/internal", h.interServiceAuthMiddleware)
	{
		storiesGroup := internalGroup.Group("/stories")
		storiesGroup.POST("", h.createStory)
		storiesGroup.GET("/:id", h.getStory)
		storiesGroup.POST("/:id/join", h.joinStory)
		storiesGroup.POST("/:id/leave", h.leaveStory)
		storiesGroup.POST("/:id/pause", h.pauseStory)
		storiesGroup.POST("/:id/pen-name", h.setPenName)
		storiesGroup.POST("/:id/close", h.closeStory)
		storiesGroup.POST("/:id/skip", h.skipTurn)
		storiesGroup.POST("/:id/finalize", h.finalizeTurn)

		entriesGroup := internalGroup.Group("/entries")
		entriesGroup.POST("", h.submitEntry)
		entriesGroup.POST("/:id/confirm", h.confirmEntry)
		entriesGroup.POST("/:id/discard", h.discardEntry)
	}
}

// interServiceAuthMiddleware проверяет статический межсервисный токен шлюза.
func (h *StoryHandler) interServiceAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get("X-Internal-Service-Token")
		if h.interServiceToken == "" || token != h.interServiceToken {
			h.logger.Warn("Rejected request with invalid inter-service token", zap.String("path", c.Path()))
			return c.JSON(http.StatusUnauthorized, APIError{Message: "Invalid inter-service token"})
		}
		return next(c)
	}
}

func (h *StoryHandler) createStory(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "createStory"))

	var req CreateStoryRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to bind request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("Request validation failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	result, err := h.storyService.CreateStory(c.Request().Context(), service.CreateStoryParams{
		GuildID:            req.GuildID,
		CreatorUserID:      req.CreatorUserID,
		CreatorDisplayName: req.CreatorDisplayName,
		Title:              req.Title,
		QuickMode:          req.QuickMode,
		TurnLengthHours:    req.TurnLengthHours,
		ReminderPercent:    req.ReminderPercent,
		Ordering:           models.OrderingType(req.Ordering),
		PrivateTurns:       req.PrivateTurns,
		AllowLateJoin:      req.AllowLateJoin,
		MaxWriters:         req.MaxWriters,
		DelayHours:         req.DelayHours,
		DelayWriters:       req.DelayWriters,
		PenName:            req.PenName,
		CreatorPrivate:     req.CreatorPrivate,
		NotifyPref:         models.NotifyPreference(req.NotifyPref),
	})
	if err != nil {
		return h.handleServiceError(c, log, err)
	}

	return c.JSON(http.StatusCreated, CreateStoryResponse{
		StoryID:   result.StoryID.String(),
		ChannelID: result.ChannelID,
		Status:    int(result.Status),
	})
}

func (h *StoryHandler) getStory(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "getStory"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	detail, err := h.storyService.GetStory(c.Request().Context(), storyID)
	if err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.JSON(http.StatusOK, toStoryView(detail.Story, detail.Writers))
}

func (h *StoryHandler) joinStory(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "joinStory"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	var req JoinStoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	writer, err := h.storyService.JoinStory(c.Request().Context(), service.JoinStoryParams{
		StoryID:      storyID,
		UserID:       req.UserID,
		DisplayName:  req.DisplayName,
		PenName:      req.PenName,
		PrivateTurns: req.PrivateTurns,
		NotifyPref:   models.NotifyPreference(req.NotifyPref),
	})
	if err != nil {
		return h.handleServiceError(c, log, err)
	}

	return c.JSON(http.StatusOK, WriterView{
		ID:           writer.ID.String(),
		UserID:       writer.UserID,
		Name:         writer.Name(),
		PrivateTurns: writer.PrivateTurns,
		NotifyPref:   string(writer.NotifyPref),
		JoinedAt:     writer.JoinedAt,
		TurnOrder:    writer.TurnOrder,
	})
}

func (h *StoryHandler) leaveStory(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "leaveStory"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	var req UserActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	if err := h.storyService.LeaveStory(c.Request().Context(), storyID, req.UserID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) pauseStory(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "pauseStory"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	if err := h.storyService.PauseStory(c.Request().Context(), storyID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) setPenName(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "setPenName"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	var req SetPenNameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	if err := h.storyService.SetPenName(c.Request().Context(), storyID, req.UserID, req.PenName); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) closeStory(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "closeStory"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	if err := h.storyService.CloseStory(c.Request().Context(), storyID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) skipTurn(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "skipTurn"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	if err := h.entryService.SkipTurn(c.Request().Context(), storyID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) finalizeTurn(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "finalizeTurn"))

	storyID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	if err := h.entryService.FinalizeTurn(c.Request().Context(), storyID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) submitEntry(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "submitEntry"))

	var req SubmitEntryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}
	storyID, err := uuid.Parse(req.StoryID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	result, err := h.entryService.SubmitEntry(c.Request().Context(), storyID, req.UserID, req.Content)
	if err != nil {
		return h.handleServiceError(c, log, err)
	}

	return c.JSON(http.StatusOK, SubmitEntryResponse{
		EntryID:         result.Entry.ID.String(),
		Content:         result.Entry.Content,
		PreviewDeadline: result.PreviewDeadline,
	})
}

func (h *StoryHandler) confirmEntry(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "confirmEntry"))

	entryID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid entry ID format"})
	}
	if err := h.entryService.ConfirmEntry(c.Request().Context(), entryID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) discardEntry(c echo.Context) error {
	log := h.logger.With(zap.String("handler", "discardEntry"))

	entryID, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid entry ID format"})
	}
	if err := h.entryService.DiscardEntry(c.Request().Context(), entryID); err != nil {
		return h.handleServiceError(c, log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseIDParam(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

// handleServiceError транслирует сентинельные ошибки сервисов в HTTP статусы.
func (h *StoryHandler) handleServiceError(c echo.Context, log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, models.ErrStoryNotFound),
		errors.Is(err, models.ErrEntryNotFound),
		errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, APIError{Message: "Not found"})
	case errors.Is(err, models.ErrNoActiveTurn):
		return c.JSON(http.StatusNotFound, APIError{Message: "No active turn"})
	case errors.Is(err, models.ErrStoryClosed),
		errors.Is(err, models.ErrStoryNotActive),
		errors.Is(err, models.ErrTurnAlreadyActive),
		errors.Is(err, models.ErrEntryNotPending),
		errors.Is(err, models.ErrPendingEntryExists),
		errors.Is(err, models.ErrNotQuickMode),
		errors.Is(err, models.ErrQuickModeStory):
		return c.JSON(http.StatusConflict, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrStoryFull),
		errors.Is(err, models.ErrLateJoinClosed),
		errors.Is(err, models.ErrAlreadyJoined),
		errors.Is(err, models.ErrNotAWriter),
		errors.Is(err, models.ErrNotYourTurn),
		errors.Is(err, models.ErrNoEligibleWriters):
		return c.JSON(http.StatusForbidden, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	default:
		log.Error("Unhandled service error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, APIError{Message: "Internal server error"})
	}
}
