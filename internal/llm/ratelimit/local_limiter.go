package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

// limiterFor returns the token bucket for provider, or nil when the
// provider has no requests-per-minute allowance.
func (r *rateLimitMiddleware) limiterFor(provider string) *rate.Limiter {
	r.localMu.Lock()
	defer r.localMu.Unlock()

	if lim, ok := r.localLimiters[provider]; ok {
		return lim
	}
	rpm := r.providers[provider].RequestsPerMinute
	if rpm <= 0 {
		r.localLimiters[provider] = nil
		return nil
	}
	burst := r.localConfig.BurstSize
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(float64(rpm)/60), burst)
	r.localLimiters[provider] = lim
	return lim
}

// waitLocal blocks until provider's bucket has a token. It returns a local
// *RateLimitError when ctx would expire before the token arrives.
func (r *rateLimitMiddleware) waitLocal(ctx context.Context, provider string) error {
	lim := r.limiterFor(provider)
	if lim == nil {
		return nil
	}

	if err := lim.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		// Size the hint from a reservation that is immediately returned.
		res := lim.Reserve()
		delay := res.Delay()
		res.Cancel()
		return &llmerrors.RateLimitError{
			Provider:   provider,
			Limit:      r.providers[provider].RequestsPerMinute,
			RetryAfter: ceilSeconds(delay),
			LocalLimit: true,
		}
	}
	return nil
}

func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
