package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vinchat/vinchat/internal/config"
)

// Store is the ephemeral key/value layer shared by the session directory,
// reply gate, key allocator, and page-flag checks. It is never the source of
// truth: every operation degrades to a miss or no-op when the backing cache is
// unreachable, so callers treat failure the same as "not cached yet".
type Store interface {
	// Set serializes value and stores it under key with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	// Get loads key into dest and reports whether a value was found.
	Get(ctx context.Context, key string, dest any) bool
	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) bool
	// Incr atomically increments the counter at key, setting ttl when the
	// counter is first created, and returns the post-increment value.
	// Returns 0 when the cache is unreachable.
	Incr(ctx context.Context, key string, ttl time.Duration) int64
}

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore connects a RedisStore using the given configuration.
func NewRedisStore(log *slog.Logger, cfg config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreFromClient(log, client)
}

// NewRedisStoreFromClient wraps an existing client, used by tests backed by
// miniredis.
func NewRedisStoreFromClient(log *slog.Logger, client *redis.Client) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{
		client: client,
		logger: log.With(slog.String("service", "cache")),
	}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("marshal cache value", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		s.logger.Error("unmarshal cache value", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache delete failed", slog.Any("error", err))
	}
}

func (s *RedisStore) Exists(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn("cache exists failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return n > 0
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) int64 {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn("cache incr failed", slog.String("key", key), slog.Any("error", err))
		return 0
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			s.logger.Warn("cache expire failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return n
}
