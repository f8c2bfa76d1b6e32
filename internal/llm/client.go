// Package llm is the examiner-model client. It sends assessment, prompt
// generation, and connection test requests to an OpenAI-compatible chat
// completions endpoint through a middleware chain:
//
//	logging -> cache -> rate limit -> reply check -> HTTP
//
// Nothing in the chain retries. A failed call surfaces once, classified,
// and the caller decides whether to try again.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-ielts/internal/llm/cache"
	"github.com/ahrav/go-ielts/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/providers"
	"github.com/ahrav/go-ielts/internal/llm/ratelimit"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// Request parameters of the fixed-purpose calls.
const (
	AssessmentSchemaName = "ielts_assessment"

	PromptTemperature = 0.8

	connectionTestPrompt      = "Say 'Hello' in response to this test message."
	connectionTestMaxTokens   = 10
	connectionTestTemperature = 0.1
)

// Difficulty levels accepted by GeneratePrompt.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Client talks to the configured examiner model. It implements
// analysis.Assessor and is safe for concurrent use.
type Client struct {
	cfg      *configuration.Config
	provider string
	model    string
	handler  transport.Handler
	logger   *slog.Logger
	now      func() time.Time
}

type options struct {
	logger     *slog.Logger
	metrics    Metrics
	httpClient *http.Client
	redis      *redis.Client
	cacheStore cache.Store
}

// Option customizes New.
type Option func(*options)

// WithLogger sets the logger used by the client and its middleware.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics sets the metrics sink of the logging middleware.
func WithMetrics(m Metrics) Option { return func(o *options) { o.metrics = m } }

// WithHTTPClient replaces the HTTP client built from the configuration.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithRedis shares one Redis connection between the global rate limiter
// and the Redis cache backend.
func WithRedis(c *redis.Client) Option { return func(o *options) { o.redis = c } }

// WithCacheStore replaces the cache backend built from the configuration.
func WithCacheStore(s cache.Store) Option { return func(o *options) { o.cacheStore = s } }

// New validates cfg and builds the middleware chain. A nil cfg uses
// configuration.DefaultConfig.
func New(ctx context.Context, cfg *configuration.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = cfg.HTTPClient
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, err
	}

	store := o.cacheStore
	if store == nil && o.redis != nil && cfg.Cache.Backend == configuration.CacheBackendRedis {
		store = cache.NewRedisStore(o.redis)
	}
	cacheMW, err := cache.NewCacheMiddleware(ctx, cfg.Cache, store, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache middleware: %w", err)
	}

	// A typed nil *redis.Client would read as a configured limiter.
	var rateLimitMW transport.Middleware
	if o.redis != nil {
		rateLimitMW = ratelimit.NewRateLimitMiddleware(ctx, cfg.RateLimit, cfg.Providers, o.redis, o.logger)
	} else {
		rateLimitMW = ratelimit.NewRateLimitMiddleware(ctx, cfg.RateLimit, cfg.Providers, nil, o.logger)
	}

	handler := transport.Chain(
		transport.NewHTTPHandler(httpClient, router),
		NewLoggingMiddleware(cfg.Observability, o.logger, o.metrics),
		cacheMW,
		rateLimitMW,
		replyMiddleware,
	)

	active, _ := cfg.Active()
	return &Client{
		cfg:      cfg,
		provider: cfg.Provider,
		model:    active.Model,
		handler:  handler,
		logger:   o.logger.With("component", "llm_client", "provider", cfg.Provider),
		now:      time.Now,
	}, nil
}

// Provider returns the active provider name.
func (c *Client) Provider() string { return c.provider }

// Model returns the active model name.
func (c *Client) Model() string { return c.model }

func (c *Client) newRequest(op transport.OperationType, system, user string) *transport.Request {
	active, _ := c.cfg.Active()
	return &transport.Request{
		Operation:    op,
		Provider:     c.provider,
		Model:        c.model,
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
		Timeout:      active.Timeout,
	}
}

// Assess sends an assessment request with schema as a strict
// response_format and returns the reply object with provider, model,
// assessment_duration, and tokens_used merged into its metadata.
func (c *Client) Assess(ctx context.Context, systemPrompt, userPrompt string, schema json.RawMessage) (json.RawMessage, error) {
	req := c.newRequest(transport.OpAssessment, systemPrompt, userPrompt)
	req.ResponseSchema = schema
	req.SchemaName = AssessmentSchemaName

	start := c.now()
	resp, err := c.handler.Handle(ctx, req)
	if err != nil {
		return nil, err
	}
	duration := c.now().Sub(start)

	reply, err := extractJSONObject(resp.Content)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"provider":            c.provider,
		"model":               c.model,
		"assessment_duration": duration.Seconds(),
		"tokens_used":         resp.Usage.TotalTokens,
	}
	if resp.Cached {
		fields["cached"] = true
	}
	return mergeMetadata(reply, fields)
}

// GeneratePrompt asks the model for a fresh Writing Task 2 prompt at the
// given difficulty.
func (c *Client) GeneratePrompt(ctx context.Context, difficulty string) (string, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	switch difficulty {
	case "":
		difficulty = DifficultyMedium
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return "", &llmerrors.ValidationError{Field: "difficulty", Value: difficulty, Message: "must be easy, medium, or hard"}
	}

	req := c.newRequest(transport.OpPromptGeneration, "", promptGenerationText(difficulty))
	req.Temperature = PromptTemperature

	resp, err := c.handler.Handle(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func promptGenerationText(difficulty string) string {
	return fmt.Sprintf(`Generate an IELTS Writing Task 2 prompt at %[1]s difficulty level.

The prompt should:
1. Be appropriate for IELTS Academic Writing Task 2
2. Present a clear opinion, discussion, or problem-solution task
3. Be relevant to contemporary issues
4. Allow for balanced argumentation
5. Be at %[1]s difficulty level

Format the response as a complete IELTS task instruction including:
- Clear task statement
- Minimum word count requirement (250 words)
- Time allocation (40 minutes)

Provide only the task prompt, no additional explanation.`, difficulty)
}

// TestConnection sends a tiny request to the active provider. On success
// it returns a message with the round-trip time; on failure the error
// message starts with a short diagnosis.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	req := c.newRequest(transport.OpConnectionTest, "", connectionTestPrompt)
	req.MaxTokens = connectionTestMaxTokens
	req.Temperature = connectionTestTemperature

	start := c.now()
	if _, err := c.handler.Handle(ctx, req); err != nil {
		return "", &ConnectionError{Reason: connectionFailureReason(err), Err: err}
	}
	return fmt.Sprintf("Connection successful (%s)", formatDuration(c.now().Sub(start))), nil
}

// ConnectionError is a failed TestConnection.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string { return e.Reason + ": " + e.Err.Error() }

func (e *ConnectionError) Unwrap() error { return e.Err }

func connectionFailureReason(err error) string {
	wf := llmerrors.ClassifyLLMError(err)
	switch wf.Type {
	case llmerrors.ErrorTypeAuth, llmerrors.ErrorTypePermission:
		return "Authentication failed"
	case llmerrors.ErrorTypeRateLimit:
		return "Rate limit exceeded"
	case llmerrors.ErrorTypeNotFound:
		return "Model not found"
	case llmerrors.ErrorTypeNetwork, llmerrors.ErrorTypeTimeout, llmerrors.ErrorTypeProvider:
		return "Connection failed"
	default:
		return "Test failed"
	}
}

func formatDuration(d time.Duration) string {
	switch s := d.Seconds(); {
	case s < 60:
		return fmt.Sprintf("%.1fs", s)
	case s < 3600:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fh", s/3600)
	}
}
