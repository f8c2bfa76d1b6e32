// Package transport defines the request pipeline of the examiner-model
// client: normalized requests and responses, the Handler and Middleware
// abstractions, and the core HTTP handler that talks to providers.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

// Router selects the provider adapter for a request.
type Router interface {
	Pick(provider string) (ProviderAdapter, error)
}

// ProviderAdapter converts between normalized requests and a provider's
// HTTP protocol.
type ProviderAdapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
	Name() string
}

// Handler processes one request.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler with additional behaviour.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. The first
// middleware is outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs provider calls.
func NewHTTPHandler(client *http.Client, router Router) Handler {
	return &httpHandler{client: client, router: router}
}

type httpHandler struct {
	client *http.Client
	router Router
}

// FinishReasonLength is the finish reason of a completion cut off at the
// max_tokens limit.
const FinishReasonLength = "length"

// Handle routes req to its provider, sends it, and parses the reply. A
// reply without content, or one cut off at the token limit, is an error
// for every operation except the connection test.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s failed: %w", adapter.Name(), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}
	resp.Usage.LatencyMs = latency.Milliseconds()

	if req.Operation == OpConnectionTest {
		return resp, nil
	}
	if resp.FinishReason == FinishReasonLength {
		return nil, fmt.Errorf("%s (%d completion tokens, max_tokens %d): %w",
			adapter.Name(), resp.Usage.CompletionTokens, req.MaxTokens, llmerrors.ErrTruncatedCompletion)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%s (finish reason %q): %w",
			adapter.Name(), resp.FinishReason, llmerrors.ErrEmptyCompletion)
	}
	return resp, nil
}
