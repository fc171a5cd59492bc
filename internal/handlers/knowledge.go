package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vinchat/vinchat/internal/knowledge"
)

// EmbedFunc turns a text fragment into its query vector. Wired at startup
// from the embedding provider and the key allocator.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// VectorIndex is the write side of the knowledge store.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []knowledge.UpsertChunk) error
	DeleteByKnowledgeID(ctx context.Context, knowledgeID int64) error
}

type knowledgeChunkRequest struct {
	ID   uint64 `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
	Link string `json:"link"`
}

type upsertKnowledgeRequest struct {
	KnowledgeID int64                   `json:"knowledge_id" validate:"required,gt=0"`
	Chunks      []knowledgeChunkRequest `json:"chunks" validate:"required,min=1,dive"`
}

// KnowledgeHandler ingests and removes knowledge documents in the vector
// index. Fragments are embedded server side before upsert.
type KnowledgeHandler struct {
	logger *slog.Logger
	index  VectorIndex
	embed  EmbedFunc
}

func NewKnowledgeHandler(log *slog.Logger, index VectorIndex, embed EmbedFunc) *KnowledgeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &KnowledgeHandler{
		logger: log.With(slog.String("handler", "knowledge")),
		index:  index,
		embed:  embed,
	}
}

func (h *KnowledgeHandler) Register(e *echo.Echo) {
	e.POST("/knowledge", h.Upsert)
	e.DELETE("/knowledge/:id", h.Delete)
}

func (h *KnowledgeHandler) Upsert(c echo.Context) error {
	var req upsertKnowledgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	chunks := make([]knowledge.UpsertChunk, len(req.Chunks))
	for i, chunk := range req.Chunks {
		vector, err := h.embed(ctx, chunk.Text)
		if err != nil {
			h.logger.Error("embed chunk failed",
				slog.Int64("knowledge_id", req.KnowledgeID),
				slog.Uint64("chunk_id", chunk.ID),
				slog.Any("error", err))
			return echo.NewHTTPError(http.StatusBadGateway, "embedding failed")
		}
		chunks[i] = knowledge.UpsertChunk{
			ID:          chunk.ID,
			KnowledgeID: req.KnowledgeID,
			Text:        chunk.Text,
			Link:        chunk.Link,
			Vector:      vector,
		}
	}

	if err := h.index.Upsert(ctx, chunks); err != nil {
		h.logger.Error("knowledge upsert failed",
			slog.Int64("knowledge_id", req.KnowledgeID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "index update failed")
	}
	return c.JSON(http.StatusOK, map[string]int{"indexed": len(chunks)})
}

func (h *KnowledgeHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid knowledge id")
	}
	if err := h.index.DeleteByKnowledgeID(c.Request().Context(), id); err != nil {
		h.logger.Error("knowledge delete failed", slog.Int64("knowledge_id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "index delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}
