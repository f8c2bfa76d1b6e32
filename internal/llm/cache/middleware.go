// Package cache stores assessment replies so an unchanged essay submitted
// against the same prompt, provider, and model is not sent to the
// examiner model twice. Entries live in an in-process LRU or in Redis.
// Cache failures never fail a request.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

const (
	defaultPoolSize   = 4
	connectionTimeout = 5 * time.Second
)

type cacheMiddleware struct {
	store   Store
	ttl     time.Duration
	enabled bool
	now     func() time.Time

	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Stats holds hit and miss counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Errors  int64
	HitRate float64
}

// NewCacheMiddleware creates the reply cache. When store is nil one is
// built from cfg; an unreachable Redis disables caching.
func NewCacheMiddleware(ctx context.Context, cfg configuration.CacheConfig, store Store, logger *slog.Logger) (transport.Middleware, error) {
	cm, err := newCacheMiddleware(ctx, cfg, store, logger)
	if err != nil {
		return nil, err
	}
	return cm.middleware(), nil
}

func newCacheMiddleware(ctx context.Context, cfg configuration.CacheConfig, store Store, logger *slog.Logger) (*cacheMiddleware, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &cacheMiddleware{
		ttl:     cfg.TTL,
		enabled: cfg.Enabled,
		now:     time.Now,
		logger:  logger.With("component", "cache"),
	}
	if !cfg.Enabled {
		return cm, nil
	}

	if store == nil {
		switch cfg.Backend {
		case configuration.CacheBackendRedis:
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
				PoolSize: defaultPoolSize,
			})
			pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
			defer cancel()
			if err := client.Ping(pingCtx).Err(); err != nil {
				cm.logger.Warn("Redis connection failed, cache disabled", "error", err)
				cm.enabled = false
				_ = client.Close()
				return cm, nil
			}
			store = NewRedisStore(client)
		default:
			size := cfg.MaxEntries
			if size <= 0 {
				size = configuration.DefaultCacheMaxEntries
			}
			mem, err := NewMemoryStore(size)
			if err != nil {
				return nil, err
			}
			store = mem
		}
	}
	cm.store = store
	return cm, nil
}

func (c *cacheMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !c.enabled || req.Operation != transport.OpAssessment {
				return next.Handle(ctx, req)
			}

			key, err := c.buildKey(req)
			if err != nil {
				c.logger.Warn("cache key generation failed", "error", err)
				return next.Handle(ctx, req)
			}

			entry, err := c.store.Get(ctx, key)
			switch {
			case err == nil:
				c.hits.Add(1)
				c.logger.Debug("cache hit", "key", key, "provider", req.Provider, "model", req.Model)
				return entry.toResponse(), nil
			case errors.Is(err, llmerrors.ErrCacheMiss):
				c.misses.Add(1)
			default:
				c.errors.Add(1)
				c.logger.Warn("cache get error", "error", err, "key", key)
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}

			if setErr := c.store.Set(ctx, key, entryFromResponse(resp, c.now()), c.ttl); setErr != nil {
				c.errors.Add(1)
				c.logger.Warn("cache set error", "error", setErr, "key", key)
			}
			return resp, nil
		})
	}
}

// buildKey prefers the caller's idempotency key and otherwise derives one
// from the canonical request.
func (c *cacheMiddleware) buildKey(req *transport.Request) (string, error) {
	idem := transport.IdemKey(req.IdempotencyKey)
	if idem == "" {
		k, err := transport.GenerateIdemKey(req)
		if err != nil {
			return "", err
		}
		idem = k
	}
	return transport.CacheKey(req.Operation, idem), nil
}

// stats returns current counters.
func (c *cacheMiddleware) stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Errors: c.errors.Load()}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
