package chat

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini API. A client is built per call because
// the API key rotates between calls.
type GeminiGenerator struct {
	logger *slog.Logger
}

func NewGeminiGenerator(log *slog.Logger) *GeminiGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &GeminiGenerator{logger: log.With(slog.String("service", "chat_gemini"))}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  req.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini completion: empty response")
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out, nil
}
