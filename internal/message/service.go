package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vinchat/vinchat/internal/store"
)

// Service persists and reads conversation messages.
type Service struct {
	logger *slog.Logger
	store  MessageStorage
}

func NewService(log *slog.Logger, messageStore MessageStorage) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger: log.With(slog.String("service", "messages")),
		store:  messageStore,
	}
}

func (s *Service) Persist(ctx context.Context, in PersistInput) (Record, error) {
	msg := store.Message{
		SessionID:  in.SessionID,
		SenderType: in.SenderType,
		Content:    in.Content,
	}
	if len(in.Images) > 0 {
		serialized, err := json.Marshal(in.Images)
		if err != nil {
			return Record{}, fmt.Errorf("marshal images: %w", err)
		}
		text := string(serialized)
		msg.Image = &text
	}

	created, err := s.store.Insert(ctx, msg)
	if err != nil {
		return Record{}, fmt.Errorf("persist message: %w", err)
	}
	return toRecord(created), nil
}

// History returns the last n messages of a session in chronological order.
func (s *Service) History(ctx context.Context, sessionID int64, n int) ([]Record, error) {
	rows, err := s.store.ListLatest(ctx, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// Rows arrive newest-first; reverse for the prompt.
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[len(rows)-1-i] = toRecord(row)
	}
	return records, nil
}

// ListPage returns one page of a session's messages, newest-first.
func (s *Service) ListPage(ctx context.Context, sessionID int64, limit, offset int) ([]Record, error) {
	rows, err := s.store.ListPage(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}
	return records, nil
}

// HistoryLines renders records as "sender: content" prompt lines.
func HistoryLines(records []Record) []string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = r.SenderType + ": " + r.Content
	}
	return lines
}

func toRecord(msg store.Message) Record {
	r := Record{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		SenderType: msg.SenderType,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
	if msg.Image != nil && *msg.Image != "" {
		if err := json.Unmarshal([]byte(*msg.Image), &r.Images); err != nil {
			r.Images = []string{*msg.Image}
		}
	}
	return r
}
