// Package channel normalizes webhook payloads from the external platforms
// into one inbound shape and sends replies back out through each platform's
// API. Web traffic has no sender here; it is delivered over the live
// connections in the ws hub.
package channel

import "context"

// Inbound is the canonical shape of one customer message from any platform.
type Inbound struct {
	Platform string `json:"platform"`
	SenderID string `json:"sender_id"`
	Message  string `json:"message"`
	PageID   string `json:"page_id,omitempty"`
}

// Sender delivers one reply to an external recipient.
type Sender interface {
	Send(ctx context.Context, recipientID, text string, images []string) error
}

// Registry maps platform names to their senders.
type Registry struct {
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

func (r *Registry) Register(platform string, sender Sender) {
	r.senders[platform] = sender
}

// SenderFor returns the sender for a platform, or nil for platforms without
// one (web).
func (r *Registry) SenderFor(platform string) Sender {
	return r.senders[platform]
}
