package message

import (
	"context"
	"time"

	"github.com/vinchat/vinchat/internal/store"
)

// Sender types for persisted messages. Staff messages carry the agent's
// display name instead of one of these constants.
const (
	SenderCustomer = "customer"
	SenderBot      = "bot"
)

// PersistInput is one message to persist.
type PersistInput struct {
	SessionID  int64
	SenderType string
	Content    string
	Images     []string
}

// Record is the API projection of a stored message.
type Record struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"chat_session_id"`
	SenderType string    `json:"sender_type"`
	Content    string    `json:"content"`
	Images     []string  `json:"image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Writer is the narrow persistence surface the orchestrator needs.
type Writer interface {
	Persist(ctx context.Context, in PersistInput) (Record, error)
}

// HistoryReader serves conversational context for generation.
type HistoryReader interface {
	History(ctx context.Context, sessionID int64, n int) ([]Record, error)
}

// MessageStorage is the durable side of the service.
type MessageStorage interface {
	Insert(ctx context.Context, msg store.Message) (store.Message, error)
	ListLatest(ctx context.Context, sessionID int64, n int) ([]store.Message, error)
	ListPage(ctx context.Context, sessionID int64, limit, offset int) ([]store.Message, error)
}
