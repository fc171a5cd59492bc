package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, name, channel, page_id, status, expire_time, current_receiver, previous_receiver, created_at`

// SessionStore persists sessions in Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Name, &s.Channel, &s.PageID, &s.Status, &s.Time,
		&s.CurrentReceiver, &s.PreviousReceiver, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func (s *SessionStore) GetByID(ctx context.Context, id int64) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (s *SessionStore) GetByName(ctx context.Context, name string) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE name = $1 ORDER BY id LIMIT 1`, name)
	return scanSession(row)
}

func (s *SessionStore) Create(ctx context.Context, sess Session) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (name, channel, page_id, status, expire_time, current_receiver, previous_receiver)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+sessionColumns,
		sess.Name, sess.Channel, sess.PageID, sess.Status, sess.Time,
		sess.CurrentReceiver, sess.PreviousReceiver)
	created, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

// Update rewrites the mutable routing fields of a session.
func (s *SessionStore) Update(ctx context.Context, sess Session) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE chat_sessions
		 SET status = $2, expire_time = $3, current_receiver = $4, previous_receiver = $5
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		sess.ID, sess.Status, sess.Time, sess.CurrentReceiver, sess.PreviousReceiver)
	return scanSession(row)
}

// SetStatus persists a reply-gate flip without touching the receivers.
func (s *SessionStore) SetStatus(ctx context.Context, id int64, status string, expire *time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET status = $2, expire_time = $3 WHERE id = $1`,
		id, status, expire)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// ListExpiredSuspended returns suspended sessions whose hold lapsed before
// now. Indefinite holds (NULL expire_time) are never returned.
func (s *SessionStore) ListExpiredSuspended(ctx context.Context, now time.Time) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions
		 WHERE status = 'false' AND expire_time IS NOT NULL AND expire_time < $1`,
		now)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ListPage returns sessions ordered newest-first.
func (s *SessionStore) ListPage(ctx context.Context, limit, offset int) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions ORDER BY id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
