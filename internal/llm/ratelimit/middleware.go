// Package ratelimit throttles examiner-model calls in two layers: a
// per-provider token bucket in this process, sized from the provider's
// requests-per-minute allowance, and an optional Redis fixed window shared
// by every process that points at the same Redis.
//
// The local layer waits for a token, the way a single user at a terminal
// expects; it only fails when the caller's deadline would pass first. The
// global layer fails fast with *llmerrors.RateLimitError. When Redis
// misbehaves the middleware drops to local-only limiting.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// Redis connection constants.
const (
	RedisReadTimeoutSeconds  = 5
	RedisWriteTimeoutSeconds = 5
	RedisPoolSize            = 4
)

// evaler is the part of the Redis client the global limiter needs.
type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

type rateLimitMiddleware struct {
	localMu       sync.Mutex
	localLimiters map[string]*rate.Limiter
	localConfig   configuration.LocalRateLimitConfig
	providers     map[string]configuration.ProviderConfig

	globalClient evaler
	globalConfig configuration.GlobalRateLimitConfig
	degraded     atomic.Bool

	logger *slog.Logger
}

// NewRateLimitMiddleware creates the rate limiting middleware. client may
// be nil, in which case one is dialled from cfg.Global when global
// limiting is enabled; a failed ping starts the middleware degraded.
func NewRateLimitMiddleware(
	ctx context.Context,
	cfg configuration.RateLimitConfig,
	providers map[string]configuration.ProviderConfig,
	client evaler,
	logger *slog.Logger,
) transport.Middleware {
	return newRateLimitMiddleware(ctx, cfg, providers, client, logger).middleware()
}

func newRateLimitMiddleware(
	ctx context.Context,
	cfg configuration.RateLimitConfig,
	providers map[string]configuration.ProviderConfig,
	client evaler,
	logger *slog.Logger,
) *rateLimitMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	rlm := &rateLimitMiddleware{
		localLimiters: make(map[string]*rate.Limiter),
		localConfig:   cfg.Local,
		providers:     providers,
		globalConfig:  cfg.Global,
		logger:        logger.With("component", "ratelimit"),
	}

	if cfg.Global.Enabled && cfg.Global.RequestsPerMinute > 0 {
		if client == nil {
			rc := redis.NewClient(&redis.Options{
				Addr:         cfg.Global.RedisAddr,
				Password:     cfg.Global.RedisPassword,
				DB:           cfg.Global.RedisDB,
				DialTimeout:  cfg.Global.ConnectTimeout,
				ReadTimeout:  RedisReadTimeoutSeconds * time.Second,
				WriteTimeout: RedisWriteTimeoutSeconds * time.Second,
				PoolSize:     RedisPoolSize,
			})
			pingCtx, cancel := context.WithTimeout(ctx, cfg.Global.ConnectTimeout)
			defer cancel()
			if err := rc.Ping(pingCtx).Err(); err != nil {
				rlm.logger.Warn("Redis connection failed, using local-only rate limiting", "error", err)
				rlm.degraded.Store(true)
			}
			client = rc
		}
		rlm.globalClient = client
	}

	return rlm
}

func (r *rateLimitMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if r.localConfig.Enabled {
				if err := r.waitLocal(ctx, req.Provider); err != nil {
					return nil, err
				}
			}

			if r.globalClient != nil && !r.degraded.Load() {
				if err := r.checkGlobal(ctx, req.Provider); err != nil {
					return nil, err
				}
			}

			return next.Handle(ctx, req)
		})
	}
}

