// Package embeddings turns text into vectors for knowledge retrieval. The
// vendor is recognized by a substring of the configured model name, matching
// the generation side.
package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Embedder produces one vector per input text. The API key is passed per
// call because keys rotate.
type Embedder interface {
	Embed(ctx context.Context, text, apiKey string) ([]float32, error)
}

// Select returns the embedder for a configured model name.
func Select(log *slog.Logger, model string) Embedder {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "gemini") || strings.Contains(lower, "embedding-001") {
		return NewGeminiEmbedder(log, model)
	}
	return NewOpenAIEmbedder(log, model)
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	logger *slog.Logger
	model  string
}

func NewOpenAIEmbedder(log *slog.Logger, model string) *OpenAIEmbedder {
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIEmbedder{
		logger: log.With(slog.String("service", "embeddings_openai")),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text, apiKey string) ([]float32, error) {
	client := openai.NewClient(apiKey)
	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// GeminiEmbedder calls the Gemini embeddings API.
type GeminiEmbedder struct {
	logger *slog.Logger
	model  string
}

func NewGeminiEmbedder(log *slog.Logger, model string) *GeminiEmbedder {
	if log == nil {
		log = slog.Default()
	}
	return &GeminiEmbedder{
		logger: log.With(slog.String("service", "embeddings_gemini")),
		model:  model,
	}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text, apiKey string) ([]float32, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	resp, err := client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini embeddings: empty response")
	}
	return resp.Embeddings[0].Values, nil
}
