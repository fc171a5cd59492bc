// Package pages gates webhook traffic on the per-page active flag, so an
// administrator can silence a Facebook page or a bot without touching its
// sessions.
package pages

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vinchat/vinchat/internal/cache"
	"github.com/vinchat/vinchat/internal/store"
)

// PageStorage is the durable side of the service.
type PageStorage interface {
	Get(ctx context.Context, platform, pageID string) (store.Page, error)
	SetActive(ctx context.Context, platform, pageID string, active bool) error
}

// Service answers cached active-flag checks.
type Service struct {
	logger *slog.Logger
	store  PageStorage
	cache  cache.Store
}

func NewService(log *slog.Logger, pageStore PageStorage, cacheStore cache.Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger: log.With(slog.String("service", "pages")),
		store:  pageStore,
		cache:  cacheStore,
	}
}

// IsActive reports whether the page may produce automated replies. Unknown
// pages are inactive. The flag is cached; failures on the durable side are
// logged and treated as inactive so a broken lookup never opens the gate.
func (s *Service) IsActive(ctx context.Context, platform, pageID string) bool {
	key := cache.PageActiveKey(platform, pageID)

	var active bool
	if s.cache.Get(ctx, key, &active) {
		return active
	}

	page, err := s.store.Get(ctx, platform, pageID)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.Warn("page lookup failed",
			slog.String("platform", platform),
			slog.String("page_id", pageID),
			slog.Any("error", err))
		return false
	}

	s.cache.Set(ctx, key, page.IsActive, cache.PageActiveTTL)
	return page.IsActive
}

// SetActive toggles the flag and refreshes the cache entry.
func (s *Service) SetActive(ctx context.Context, platform, pageID string, active bool) error {
	if err := s.store.SetActive(ctx, platform, pageID, active); err != nil {
		return err
	}
	s.cache.Set(ctx, cache.PageActiveKey(platform, pageID), active, cache.PageActiveTTL)
	return nil
}
