package chat

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator calls the OpenAI chat completion API. A client is built per
// call because the API key rotates between calls.
type OpenAIGenerator struct {
	logger *slog.Logger
}

func NewOpenAIGenerator(log *slog.Logger) *OpenAIGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIGenerator{logger: log.With(slog.String("service", "chat_openai"))}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	client := openai.NewClient(req.APIKey)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
