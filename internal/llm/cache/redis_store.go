package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

// kv is the part of the Redis client RedisStore needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps entries as JSON strings with a Redis-side TTL.
type RedisStore struct {
	client kv
}

// NewRedisStore wraps client.
func NewRedisStore(client kv) *RedisStore {
	return &RedisStore{client: client}
}

// Get loads and decodes the entry under key. Undecodable entries are
// deleted and reported as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, llmerrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.StoredAtMs <= 0 {
		_ = s.client.Del(ctx, key).Err()
		return nil, llmerrors.ErrCacheMiss
	}
	return &entry, nil
}

// Set encodes entry and stores it for ttl.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
