package chat

import (
	"log/slog"
	"strings"
)

// Resolver picks the generation provider for a configured model name. The
// vendor is recognized by substring, so "gemini-2.0-flash" routes to Gemini
// and anything else to OpenAI.
type Resolver struct {
	openai Generator
	gemini Generator
}

func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{
		openai: NewOpenAIGenerator(log),
		gemini: NewGeminiGenerator(log),
	}
}

func (r *Resolver) Select(model string) Generator {
	if strings.Contains(strings.ToLower(model), "gemini") {
		return r.gemini
	}
	return r.openai
}
