// Package keyring spreads paid provider calls across the configured API keys.
// A session sticks to one key for the lifetime of its pin so a single
// conversation does not fragment quota across keys; anonymous calls rotate on
// every allocation.
package keyring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vinchat/vinchat/internal/cache"
	"github.com/vinchat/vinchat/internal/store"
)

// Key types within a credential group.
const (
	TypeBot       = "bot"
	TypeEmbedding = "embedding"
)

// ErrNoKeysConfigured means the requested credential group has no keys of the
// requested type. This is a configuration fault, not a transient condition.
var ErrNoKeysConfigured = errors.New("no provider keys configured")

// KeySource lists the durable keys of a credential group.
type KeySource interface {
	ListByGroupAndType(ctx context.Context, group, typ string) ([]store.ProviderKey, error)
}

// Allocator rotates provider keys using a shared counter in the cache. The
// counter increment is atomic, so concurrent allocations distribute uniformly
// within a single cache deployment.
type Allocator struct {
	logger *slog.Logger
	keys   KeySource
	cache  cache.Store
}

func NewAllocator(log *slog.Logger, keys KeySource, cacheStore cache.Store) *Allocator {
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{
		logger: log.With(slog.String("service", "keyring")),
		keys:   keys,
		cache:  cacheStore,
	}
}

// Keys returns the ordered key list for a credential group, cached for an
// hour.
func (a *Allocator) Keys(ctx context.Context, group, typ string) ([]store.ProviderKey, error) {
	listKey := cache.KeyListKey(group) + ":type_" + typ

	var cached []store.ProviderKey
	if a.cache.Get(ctx, listKey, &cached) {
		return cached, nil
	}

	keys, err := a.keys.ListByGroupAndType(ctx, group, typ)
	if err != nil {
		return nil, fmt.Errorf("load keys for %s/%s: %w", group, typ, err)
	}
	if len(keys) > 0 {
		a.cache.Set(ctx, listKey, keys, cache.KeyListTTL)
	}
	return keys, nil
}

// Allocate picks the key for one provider call. sessionID pins the choice for
// the pin TTL; a nil sessionID rotates per call.
func (a *Allocator) Allocate(ctx context.Context, group, typ string, sessionID *int64) (store.ProviderKey, error) {
	keys, err := a.Keys(ctx, group, typ)
	if err != nil {
		return store.ProviderKey{}, err
	}
	if len(keys) == 0 {
		return store.ProviderKey{}, fmt.Errorf("%w: group %s type %s", ErrNoKeysConfigured, group, typ)
	}

	if sessionID != nil {
		pinKey := cache.KeyPinKey(*sessionID, group, typ)
		var pinned int
		if a.cache.Get(ctx, pinKey, &pinned) && pinned >= 0 && pinned < len(keys) {
			return keys[pinned], nil
		}
		index := a.nextIndex(ctx, group, typ, len(keys))
		a.cache.Set(ctx, pinKey, index, cache.KeyPinTTL)
		return keys[index], nil
	}

	return keys[a.nextIndex(ctx, group, typ, len(keys))], nil
}

// Invalidate clears the cached key list and, when typ is given, the rotation
// counter. Called after an administrator changes the configured keys.
func (a *Allocator) Invalidate(ctx context.Context, group, typ string) {
	if typ == "" {
		a.cache.Delete(ctx,
			cache.KeyListKey(group)+":type_"+TypeBot,
			cache.KeyListKey(group)+":type_"+TypeEmbedding)
		return
	}
	a.cache.Delete(ctx,
		cache.KeyListKey(group)+":type_"+typ,
		cache.CounterKey(group, typ))
}

func (a *Allocator) nextIndex(ctx context.Context, group, typ string, n int) int {
	counter := a.cache.Incr(ctx, cache.CounterKey(group, typ), cache.CounterTTL)
	return int(counter % int64(n))
}
