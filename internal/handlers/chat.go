package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/vinchat/vinchat/internal/reply"
	"github.com/vinchat/vinchat/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type customerFrame struct {
	Message string   `json:"message"`
	Images  []string `json:"image,omitempty"`
}

type adminFrame struct {
	SessionID  int64    `json:"chat_session_id"`
	SenderName string   `json:"sender_name"`
	Message    string   `json:"message"`
	Images     []string `json:"image,omitempty"`
}

// ChatHandler owns the live websocket endpoints: one per customer session
// and one shared admin endpoint observing every session.
type ChatHandler struct {
	logger       *slog.Logger
	orchestrator *reply.Orchestrator
	hub          *ws.Hub
}

func NewChatHandler(log *slog.Logger, orchestrator *reply.Orchestrator, hub *ws.Hub) *ChatHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatHandler{
		logger:       log.With(slog.String("handler", "chat")),
		orchestrator: orchestrator,
		hub:          hub,
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.GET("/ws/chat/:session_id", h.CustomerSocket)
	e.GET("/ws/admin", h.AdminSocket)
}

// CustomerSocket runs the message loop for one customer connection.
func (h *ChatHandler) CustomerSocket(c echo.Context) error {
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	h.hub.RegisterCustomer(conn, sessionID)
	defer h.hub.UnregisterCustomer(conn, sessionID)

	ctx := c.Request().Context()
	for {
		var frame customerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("customer socket closed", slog.Int64("session_id", sessionID), slog.Any("error", err))
			}
			return nil
		}
		if frame.Message == "" {
			continue
		}

		echoMsg, err := h.orchestrator.HandleWebCustomer(ctx, sessionID, frame.Message, frame.Images)
		if err != nil {
			h.logger.Error("customer message failed", slog.Int64("session_id", sessionID), slog.Any("error", err))
			continue
		}
		if echoMsg == nil {
			// No such session; nothing to reply into.
			return nil
		}
		h.hub.BroadcastToAdmins(*echoMsg)
	}
}

// AdminSocket runs the message loop for one admin dashboard connection.
func (h *ChatHandler) AdminSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	h.hub.RegisterAdmin(conn)
	defer h.hub.UnregisterAdmin(conn)

	ctx := c.Request().Context()
	for {
		var frame adminFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("admin socket closed", slog.Any("error", err))
			}
			return nil
		}
		if frame.Message == "" || frame.SessionID == 0 {
			continue
		}
		if frame.SenderName == "" {
			frame.SenderName = "Admin"
		}

		echoMsg, err := h.orchestrator.HandleAdmin(ctx, frame.SessionID, frame.SenderName, frame.Message, frame.Images)
		if err != nil {
			h.logger.Error("admin message failed", slog.Int64("session_id", frame.SessionID), slog.Any("error", err))
			continue
		}
		if echoMsg == nil {
			continue
		}
		h.hub.BroadcastToAdminsExcept(conn, *echoMsg)
	}
}
