package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinchat/vinchat/internal/channel"
	"github.com/vinchat/vinchat/internal/reply"
)

// WebhookHandler receives platform callbacks. Every POST answers 200 as fast
// as possible; the platforms retry aggressively on anything else, so parse or
// processing failures are logged rather than surfaced.
type WebhookHandler struct {
	logger       *slog.Logger
	orchestrator *reply.Orchestrator
	verifyToken  string
}

func NewWebhookHandler(log *slog.Logger, orchestrator *reply.Orchestrator, fbVerifyToken string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:       log.With(slog.String("handler", "webhook")),
		orchestrator: orchestrator,
		verifyToken:  fbVerifyToken,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook/facebook", h.VerifyFacebook)
	e.POST("/webhook/facebook", h.Facebook)
	e.POST("/webhook/telegram", h.Telegram)
	e.POST("/webhook/zalo", h.Zalo)
}

// VerifyFacebook answers the Graph subscription handshake.
func (h *WebhookHandler) VerifyFacebook(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	if mode != "subscribe" || token != h.verifyToken {
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	return c.String(http.StatusOK, c.QueryParam("hub.challenge"))
}

func (h *WebhookHandler) Facebook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}

	inbound, err := channel.ParseFacebook(body)
	if err != nil {
		h.logger.Warn("facebook payload rejected", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}
	for _, in := range inbound {
		h.dispatch(c, in)
	}
	return c.NoContent(http.StatusOK)
}

func (h *WebhookHandler) Telegram(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}

	in, err := channel.ParseTelegram(body)
	if err != nil {
		h.logger.Warn("telegram payload rejected", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}
	if in != nil {
		h.dispatch(c, *in)
	}
	return c.NoContent(http.StatusOK)
}

func (h *WebhookHandler) Zalo(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}

	in, err := channel.ParseZalo(body)
	if err != nil {
		h.logger.Warn("zalo payload rejected", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}
	if in != nil {
		h.dispatch(c, *in)
	}
	return c.NoContent(http.StatusOK)
}

func (h *WebhookHandler) dispatch(c echo.Context, in channel.Inbound) {
	if err := h.orchestrator.HandleWebhook(c.Request().Context(), in); err != nil {
		h.logger.Error("webhook message failed",
			slog.String("platform", in.Platform),
			slog.String("sender_id", in.SenderID),
			slog.Any("error", err))
	}
}
