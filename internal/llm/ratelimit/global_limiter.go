package ratelimit

import (
	"context"
	"fmt"
	"time"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

const (
	globalWindow         = time.Minute
	maxRetryAfterSeconds = 3600
)

// fixedWindowScript counts requests in a window that starts with the first
// request. It returns {1, remaining} when allowed and {0, pttl} when not.
//
// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
// ARGV[2] = limit
const fixedWindowScript = `
	local key = KEYS[1]
	local window = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		redis.call('SET', key, 1, 'PX', window)
		return {1, limit - 1}
	end

	local count = tonumber(current)
	if count < limit then
		local newCount = redis.call('INCR', key)
		if redis.call('PTTL', key) == -1 then
			redis.call('PEXPIRE', key, window)
		end
		return {1, limit - newCount}
	end
	return {0, redis.call('PTTL', key)}
`

// checkGlobal consumes one request from the shared window. Redis failures
// and malformed replies switch the middleware to degraded mode and let the
// request through.
func (r *rateLimitMiddleware) checkGlobal(ctx context.Context, provider string) error {
	limit := int64(r.globalConfig.RequestsPerMinute)
	key := fmt.Sprintf("rl:global:%s", provider)

	result, err := r.globalClient.Eval(ctx, fixedWindowScript, []string{key},
		globalWindow.Milliseconds(), limit).Result()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.degrade("global rate limit check failed", err)
		return nil
	}

	res, ok := result.([]any)
	if !ok || len(res) < 2 {
		r.degrade("invalid Redis response format", fmt.Errorf("unexpected result %v", result))
		return nil
	}
	allowed, ok1 := res[0].(int64)
	second, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		r.degrade("invalid Redis response values", fmt.Errorf("unexpected result %v", res))
		return nil
	}
	if allowed == 1 {
		return nil
	}

	retryAfter := ceilSeconds(time.Duration(second) * time.Millisecond)
	if retryAfter > maxRetryAfterSeconds {
		retryAfter = maxRetryAfterSeconds
	}
	return &llmerrors.RateLimitError{
		Provider:   provider,
		Limit:      int(limit),
		RetryAfter: retryAfter,
		ResetAt:    time.Now().Add(time.Duration(second) * time.Millisecond).Unix(),
		LocalLimit: true,
	}
}

func (r *rateLimitMiddleware) degrade(msg string, err error) {
	if r.degraded.CompareAndSwap(false, true) {
		r.logger.Warn(msg+", switching to local-only rate limiting", "error", err)
	}
}
