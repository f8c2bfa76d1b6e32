package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// mockEvaler answers Eval with canned results in order, repeating the last.
type mockEvaler struct {
	mu      sync.Mutex
	results []any
	err     error
	keys    [][]string
	args    [][]any
}

func (m *mockEvaler) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, keys)
	m.args = append(m.args, args)

	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	val := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	cmd.SetVal(val)
	return cmd
}

func (m *mockEvaler) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

var okHandler = transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
	return &transport.Response{Content: "ok"}, nil
})

func providers() map[string]configuration.ProviderConfig {
	return configuration.DefaultConfig().Providers
}

func globalConfig() configuration.RateLimitConfig {
	return configuration.RateLimitConfig{
		Global: configuration.GlobalRateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			RedisAddr:         "localhost:6379",
		},
	}
}

func newMiddleware(t *testing.T, cfg configuration.RateLimitConfig, client evaler) (*rateLimitMiddleware, transport.Handler) {
	t.Helper()
	rlm := newRateLimitMiddleware(context.Background(), cfg, providers(), client, nil)
	return rlm, transport.Chain(okHandler, rlm.middleware())
}

func TestGlobalLimit_Allowed(t *testing.T) {
	ev := &mockEvaler{results: []any{[]any{int64(1), int64(9)}}}
	_, h := newMiddleware(t, globalConfig(), ev)

	resp, err := h.Handle(context.Background(), &transport.Request{Provider: configuration.ProviderOpenAI})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	require.Equal(t, 1, ev.calls())
	assert.Equal(t, []string{"rl:global:openai"}, ev.keys[0])
	assert.Equal(t, []any{int64(60000), int64(10)}, ev.args[0])
}

func TestGlobalLimit_Denied(t *testing.T) {
	ev := &mockEvaler{results: []any{[]any{int64(0), int64(12500)}}}
	rlm, h := newMiddleware(t, globalConfig(), ev)

	_, err := h.Handle(context.Background(), &transport.Request{Provider: configuration.ProviderGoogle})

	var rl *llmerrors.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, "google", rl.Provider)
	assert.Equal(t, 13, rl.RetryAfter)
	assert.Equal(t, 10, rl.Limit)
	assert.True(t, rl.LocalLimit)
	assert.Greater(t, rl.ResetAt, time.Now().Unix())
	assert.False(t, rlm.degraded.Load())
}

func TestGlobalLimit_RetryAfterIsCapped(t *testing.T) {
	ev := &mockEvaler{results: []any{[]any{int64(0), int64(10 * time.Hour / time.Millisecond)}}}
	_, h := newMiddleware(t, globalConfig(), ev)

	_, err := h.Handle(context.Background(), &transport.Request{Provider: configuration.ProviderOpenAI})
	assert.Equal(t, maxRetryAfterSeconds, llmerrors.GetRetryAfter(err))
}

func TestGlobalLimit_Degrades(t *testing.T) {
	tests := []struct {
		name string
		ev   *mockEvaler
	}{
		{"redis error", &mockEvaler{err: errors.New("connection refused")}},
		{"wrong shape", &mockEvaler{results: []any{"OK"}}},
		{"short reply", &mockEvaler{results: []any{[]any{int64(1)}}}},
		{"wrong value types", &mockEvaler{results: []any{[]any{"1", "9"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rlm, h := newMiddleware(t, globalConfig(), tt.ev)

			for range 3 {
				_, err := h.Handle(context.Background(), &transport.Request{Provider: configuration.ProviderOpenAI})
				require.NoError(t, err)
			}
			assert.True(t, rlm.degraded.Load())
			assert.Equal(t, 1, tt.ev.calls(), "degraded middleware stops consulting Redis")
		})
	}
}

func TestGlobalLimit_CanceledContextIsNotDegradation(t *testing.T) {
	ev := &mockEvaler{err: context.Canceled}
	rlm, h := newMiddleware(t, globalConfig(), ev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Handle(ctx, &transport.Request{Provider: configuration.ProviderOpenAI})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, rlm.degraded.Load())
}

func TestGlobalLimit_DisabledSkipsRedis(t *testing.T) {
	ev := &mockEvaler{results: []any{[]any{int64(0), int64(1000)}}}
	cfg := globalConfig()
	cfg.Global.Enabled = false
	_, h := newMiddleware(t, cfg, ev)

	_, err := h.Handle(context.Background(), &transport.Request{Provider: configuration.ProviderOpenAI})
	require.NoError(t, err)
	assert.Zero(t, ev.calls())
}

func TestLocalLimit(t *testing.T) {
	provs := map[string]configuration.ProviderConfig{
		"slow":      {RequestsPerMinute: 1},
		"unlimited": {},
	}
	cfg := configuration.RateLimitConfig{Local: configuration.LocalRateLimitConfig{Enabled: true, BurstSize: 1}}
	rlm := newRateLimitMiddleware(context.Background(), cfg, provs, nil, nil)
	h := transport.Chain(okHandler, rlm.middleware())

	t.Run("first request uses the burst", func(t *testing.T) {
		_, err := h.Handle(context.Background(), &transport.Request{Provider: "slow"})
		require.NoError(t, err)
	})

	t.Run("deadline shorter than the wait", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := h.Handle(ctx, &transport.Request{Provider: "slow"})
		var rl *llmerrors.RateLimitError
		require.ErrorAs(t, err, &rl)
		assert.True(t, rl.LocalLimit)
		assert.Equal(t, "slow", rl.Provider)
		assert.Equal(t, 1, rl.Limit)
		assert.GreaterOrEqual(t, rl.RetryAfter, 1)
		assert.Less(t, time.Since(start), time.Second, "an impossible wait fails immediately")
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.Handle(ctx, &transport.Request{Provider: "slow"})
		require.Error(t, err)
		assert.False(t, llmerrors.IsRateLimitError(err))
	})

	t.Run("provider without a limit is never throttled", func(t *testing.T) {
		for range 20 {
			_, err := h.Handle(context.Background(), &transport.Request{Provider: "unlimited"})
			require.NoError(t, err)
		}
		assert.Nil(t, rlm.limiterFor("unlimited"))
	})

	t.Run("limiters are shared per provider", func(t *testing.T) {
		assert.Same(t, rlm.limiterFor("slow"), rlm.limiterFor("slow"))
	})
}

func TestLocalLimit_WaitsForToken(t *testing.T) {
	provs := map[string]configuration.ProviderConfig{"fast": {RequestsPerMinute: 600}}
	cfg := configuration.RateLimitConfig{Local: configuration.LocalRateLimitConfig{Enabled: true, BurstSize: 1}}
	h := transport.Chain(okHandler, NewRateLimitMiddleware(context.Background(), cfg, provs, nil, nil))

	start := time.Now()
	for range 3 {
		_, err := h.Handle(context.Background(), &transport.Request{Provider: "fast"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "10 rps with burst 1 spaces calls 100ms apart")
}
