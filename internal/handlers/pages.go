package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinchat/vinchat/internal/pages"
)

type setPageActiveRequest struct {
	Platform string `json:"platform" validate:"required,oneof=facebook telegram zalo"`
	PageID   string `json:"page_id"`
	Active   *bool  `json:"is_active" validate:"required"`
}

// PageHandler toggles the per-page auto-reply flag.
type PageHandler struct {
	logger *slog.Logger
	pages  *pages.Service
}

func NewPageHandler(log *slog.Logger, pageService *pages.Service) *PageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PageHandler{
		logger: log.With(slog.String("handler", "pages")),
		pages:  pageService,
	}
}

func (h *PageHandler) Register(e *echo.Echo) {
	e.PUT("/pages/active", h.SetActive)
	e.GET("/pages/:platform/:page_id/active", h.GetActive)
}

func (h *PageHandler) SetActive(c echo.Context) error {
	var req setPageActiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.pages.SetActive(c.Request().Context(), req.Platform, req.PageID, *req.Active); err != nil {
		h.logger.Error("set page flag failed",
			slog.String("platform", req.Platform),
			slog.String("page_id", req.PageID),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "update page failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"platform":  req.Platform,
		"page_id":   req.PageID,
		"is_active": *req.Active,
	})
}

func (h *PageHandler) GetActive(c echo.Context) error {
	platform := c.Param("platform")
	pageID := c.Param("page_id")
	active := h.pages.IsActive(c.Request().Context(), platform, pageID)
	return c.JSON(http.StatusOK, map[string]any{
		"platform":  platform,
		"page_id":   pageID,
		"is_active": active,
	})
}
