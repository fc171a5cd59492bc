package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, chat_session_id, sender_type, content, image, created_at`

// MessageStore persists conversation messages in Postgres.
type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SessionID, &m.SenderType, &m.Content, &m.Image, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) Insert(ctx context.Context, msg Message) (Message, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (chat_session_id, sender_type, content, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+messageColumns,
		msg.SessionID, msg.SenderType, msg.Content, msg.Image)
	created, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return created, nil
}

// ListLatest returns the newest n messages of a session, most recent first.
// Callers reverse the slice to get chronological order.
func (s *MessageStore) ListLatest(ctx context.Context, sessionID int64, n int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE chat_session_id = $1 ORDER BY id DESC LIMIT $2`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("list latest messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *MessageStore) ListPage(ctx context.Context, sessionID int64, limit, offset int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE chat_session_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *MessageStore) DeleteBySessionIDs(ctx context.Context, sessionIDs []int64) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM chat_messages WHERE chat_session_id = ANY($1)`, sessionIDs)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
