package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/vinchat/vinchat/internal/message"
	"github.com/vinchat/vinchat/internal/session"
	"github.com/vinchat/vinchat/internal/store"
	"github.com/vinchat/vinchat/internal/ws"
)

var validate = validator.New()

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type updateSessionRequest struct {
	Status string `json:"status" validate:"required,oneof=true false"`
	Option string `json:"option" validate:"omitempty,oneof=1h 4h next_morning forever"`
	Actor  string `json:"actor"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type rateSessionRequest struct {
	Stars   int    `json:"stars" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// SessionHandler exposes the session directory to the admin dashboard and the
// web widget.
type SessionHandler struct {
	logger    *slog.Logger
	directory *session.Directory
	messages  *message.Service
	ratings   *store.RatingStore
	hub       *ws.Hub
}

func NewSessionHandler(log *slog.Logger, directory *session.Directory, messages *message.Service, ratings *store.RatingStore, hub *ws.Hub) *SessionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHandler{
		logger:    log.With(slog.String("handler", "sessions")),
		directory: directory,
		messages:  messages,
		ratings:   ratings,
		hub:       hub,
	}
}

func (h *SessionHandler) Register(e *echo.Echo) {
	e.POST("/sessions", h.Create)
	e.GET("/sessions", h.List)
	e.GET("/sessions/check", h.Check)
	e.GET("/sessions/:id", h.Get)
	e.PUT("/sessions/:id", h.Update)
	e.DELETE("/sessions", h.BulkDelete)
	e.GET("/sessions/:id/messages", h.Messages)
	e.POST("/sessions/:id/ratings", h.Rate)
	e.GET("/sessions/:id/ratings", h.Ratings)
}

// Create starts a fresh web session for the chat widget.
func (h *SessionHandler) Create(c echo.Context) error {
	snap, err := h.directory.CreateWeb(c.Request().Context())
	if err != nil {
		h.logger.Error("create web session failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "create session failed")
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *SessionHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	snaps, err := h.directory.ListPage(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("list sessions failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list sessions failed")
	}
	return c.JSON(http.StatusOK, snaps)
}

// Check resolves a session by its derived name without creating one. The web
// widget uses it to resume a stored session.
func (h *SessionHandler) Check(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	snap, err := h.directory.CheckByName(c.Request().Context(), name)
	if err != nil {
		h.logger.Error("check session failed", slog.String("name", name), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "check session failed")
	}
	if snap == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) Get(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	snap, err := h.directory.GetByID(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("get session failed", slog.Int64("id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "get session failed")
	}
	if snap == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, snap)
}

// Update applies an administrative status change and pushes the new snapshot
// to every admin dashboard.
func (h *SessionHandler) Update(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req updateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	snap, err := h.directory.Update(c.Request().Context(), id, session.UpdateInput{
		Status: req.Status,
		Option: req.Option,
		Actor:  req.Actor,
	})
	if err != nil {
		h.logger.Error("update session failed", slog.Int64("id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "update session failed")
	}
	if snap == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	h.hub.BroadcastToAdmins(snap)
	return c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) BulkDelete(c echo.Context) error {
	var req bulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.directory.BulkDelete(c.Request().Context(), req.IDs); err != nil {
		h.logger.Error("bulk delete failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete sessions failed")
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

func (h *SessionHandler) Messages(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	records, err := h.messages.ListPage(c.Request().Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("list messages failed", slog.Int64("id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list messages failed")
	}
	return c.JSON(http.StatusOK, records)
}

func (h *SessionHandler) Rate(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req rateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rating, err := h.ratings.Insert(c.Request().Context(), store.Rating{
		SessionID: id,
		Stars:     req.Stars,
		Comment:   req.Comment,
	})
	if err != nil {
		h.logger.Error("insert rating failed", slog.Int64("id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "save rating failed")
	}
	return c.JSON(http.StatusCreated, rating)
}

func (h *SessionHandler) Ratings(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	ratings, err := h.ratings.ListBySession(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("list ratings failed", slog.Int64("id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list ratings failed")
	}
	return c.JSON(http.StatusOK, ratings)
}

func sessionID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	return id, nil
}

func pageParams(c echo.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxPageSize {
			limit = n
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
