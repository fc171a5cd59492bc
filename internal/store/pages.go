package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PageStore reads and toggles the active flags of external channel pages.
type PageStore struct {
	pool *pgxpool.Pool
}

func NewPageStore(pool *pgxpool.Pool) *PageStore {
	return &PageStore{pool: pool}
}

func (s *PageStore) Get(ctx context.Context, platform, pageID string) (Page, error) {
	var p Page
	err := s.pool.QueryRow(ctx,
		`SELECT id, platform, page_id, name, is_active
		 FROM channel_pages WHERE platform = $1 AND page_id = $2`,
		platform, pageID).Scan(&p.ID, &p.Platform, &p.PageID, &p.Name, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

func (s *PageStore) SetActive(ctx context.Context, platform, pageID string, active bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE channel_pages SET is_active = $3 WHERE platform = $1 AND page_id = $2`,
		platform, pageID, active)
	if err != nil {
		return fmt.Errorf("set page active: %w", err)
	}
	return nil
}
