package chat

import (
	"context"
	"strings"
)

// Envelope is the structured reply payload persisted and broadcast for every
// bot message: the answer text plus the source links backing it.
type Envelope struct {
	Message string   `json:"message"`
	Links   []string `json:"links"`
}

// NoInfoMarker is the phrase the prompt instructs the model to use when the
// knowledge base has no authoritative answer. Replies containing it trigger a
// best-effort admin notification.
const NoInfoMarker = "chưa có thông tin chính thức"

const apologyMessage = "Xin lỗi, đã có lỗi xảy ra khi xử lý câu hỏi của bạn."

// Apology is the degraded reply used when generation fails.
func Apology() Envelope {
	return Envelope{Message: apologyMessage, Links: []string{}}
}

// HasNoInfo reports whether the reply signals a missing-information answer.
func (e Envelope) HasNoInfo() bool {
	return strings.Contains(e.Message, NoInfoMarker)
}

// Request is one generation call.
type Request struct {
	Model  string
	APIKey string
	Prompt string
}

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
