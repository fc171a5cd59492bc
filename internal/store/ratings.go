package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RatingStore persists customer reviews.
type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

func (s *RatingStore) Insert(ctx context.Context, r Rating) (Rating, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO session_ratings (chat_session_id, stars, comment)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		r.SessionID, r.Stars, r.Comment).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return r, nil
}

func (s *RatingStore) ListBySession(ctx context.Context, sessionID int64) ([]Rating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_session_id, stars, comment, created_at
		 FROM session_ratings WHERE chat_session_id = $1 ORDER BY id DESC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Stars, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}
