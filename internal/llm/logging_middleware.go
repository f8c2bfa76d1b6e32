package llm

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

const responsePreviewLen = 200

// Metrics receives request counters and latency/token histograms.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string, value float64)
	RecordHistogram(name string, tags map[string]string, value float64)
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) IncrementCounter(string, map[string]string, float64) {}

func (NoOpMetrics) RecordHistogram(string, map[string]string, float64) {}

type loggingMiddleware struct {
	logger        *slog.Logger
	metrics       Metrics
	redactPrompts bool
}

// NewLoggingMiddleware logs the start and outcome of every examiner-model
// call. Prompt and reply bodies are logged as lengths unless redaction is
// turned off.
func NewLoggingMiddleware(cfg configuration.ObservabilityConfig, logger *slog.Logger, metrics Metrics) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	lm := &loggingMiddleware{
		logger:        logger.With("component", "llm"),
		metrics:       metrics,
		redactPrompts: cfg.RedactPrompts,
	}
	return lm.middleware
}

func (m *loggingMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		requestID := req.TraceID
		if requestID == "" {
			requestID = uuid.NewString()
			req.TraceID = requestID
		}

		tags := map[string]string{
			"provider":  req.Provider,
			"model":     req.Model,
			"operation": string(req.Operation),
		}

		m.logRequest(ctx, req, requestID)
		m.metrics.IncrementCounter("llm.requests.total", tags, 1)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		m.metrics.RecordHistogram("llm.request.duration_ms", tags, float64(duration.Milliseconds()))

		if err != nil {
			m.handleError(ctx, req, err, requestID, duration, tags)
		} else if resp != nil {
			m.handleSuccess(ctx, req, resp, requestID, duration, tags)
		}
		return resp, err
	})
}

func (m *loggingMiddleware) logRequest(ctx context.Context, req *transport.Request, requestID string) {
	fields := []any{
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	}
	if m.redactPrompts {
		fields = append(fields,
			"system_prompt_length", len(req.SystemPrompt),
			"user_prompt_length", len(req.UserPrompt))
	} else {
		fields = append(fields,
			"system_prompt", req.SystemPrompt,
			"user_prompt", req.UserPrompt)
	}
	m.logger.InfoContext(ctx, "LLM request started", fields...)
}

func (m *loggingMiddleware) handleError(
	ctx context.Context,
	req *transport.Request,
	err error,
	requestID string,
	duration time.Duration,
	tags map[string]string,
) {
	errorType := string(llmerrors.ErrorTypeUnknown)
	if wfErr := llmerrors.ClassifyLLMError(err); wfErr != nil {
		errorType = string(wfErr.Type)
	}

	errorTags := maps.Clone(tags)
	errorTags["error_type"] = errorType
	m.metrics.IncrementCounter("llm.requests.errors", errorTags, 1)

	m.logger.ErrorContext(ctx, "LLM request failed",
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"duration_ms", duration.Milliseconds(),
		"error_type", errorType,
		"retry_after_seconds", llmerrors.GetRetryAfter(err),
		"error", err.Error(),
	)
}

func (m *loggingMiddleware) handleSuccess(
	ctx context.Context,
	req *transport.Request,
	resp *transport.Response,
	requestID string,
	duration time.Duration,
	tags map[string]string,
) {
	m.metrics.IncrementCounter("llm.requests.success", tags, 1)
	m.metrics.RecordHistogram("llm.tokens.prompt", tags, float64(resp.Usage.PromptTokens))
	m.metrics.RecordHistogram("llm.tokens.completion", tags, float64(resp.Usage.CompletionTokens))
	m.metrics.RecordHistogram("llm.tokens.total", tags, float64(resp.Usage.TotalTokens))

	fields := []any{
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"duration_ms", duration.Milliseconds(),
		"cached", resp.Cached,
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"provider_request_ids", strings.Join(resp.ProviderRequestIDs, ","),
	}
	if m.redactPrompts {
		fields = append(fields, "response_length", len(resp.Content))
	} else {
		content := resp.Content
		if len(content) > responsePreviewLen {
			content = content[:responsePreviewLen] + "..."
		}
		fields = append(fields, "response_preview", content)
	}
	m.logger.InfoContext(ctx, "LLM request completed", fields...)
}
