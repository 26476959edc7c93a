package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// RedisStore keeps entries in Redis, leaning on native key expiry for the
// TTL. Keys are prefixed per tenant so Purge can SCAN one tenant's keys
// without touching others.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		logger: logging.NewLogger("cache-redis"),
	}
}

// Get returns the entry for key. Expired entries vanish on their own via
// Redis expiry.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	cacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set replaces the entry for key with the store's TTL.
func (s *RedisStore) Set(ctx context.Context, key Key, items []upstream.Item) error {
	data, err := json.Marshal(Entry{Items: items, CachedAt: time.Now()})
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Purge deletes every key under the tenant's prefix.
func (s *RedisStore) Purge(ctx context.Context, tenant string) error {
	pattern := "summary:" + NormalizeDomain(tenant) + ":*"

	iter := s.redis.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("purge").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		cacheErrors.WithLabelValues("purge").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	s.logger.Info().Str("tenant", tenant).Int("entries", len(keys)).Msg("Purged tenant cache")
	return nil
}

func (s *RedisStore) redisKey(key Key) string {
	return "summary:" + key.Tenant() + ":" + key.Hash()
}
