package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
)

// Fallback tries a list of clients in order and returns the first
// answer. It implements analysis.Assessor and session.PromptGenerator.
type Fallback struct {
	clients []*Client
	logger  *slog.Logger
}

// NewFallback wraps clients, the preferred one first.
func NewFallback(logger *slog.Logger, clients ...*Client) (*Fallback, error) {
	if len(clients) == 0 {
		return nil, errors.New("fallback needs at least one client")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{clients: clients, logger: logger.With("component", "llm_fallback")}, nil
}

// Provider returns the preferred provider name.
func (f *Fallback) Provider() string { return f.clients[0].Provider() }

// Model returns the preferred model name.
func (f *Fallback) Model() string { return f.clients[0].Model() }

// Assess asks each client in turn. The reply metadata names the provider
// that answered.
func (f *Fallback) Assess(ctx context.Context, systemPrompt, userPrompt string, schema json.RawMessage) (json.RawMessage, error) {
	return firstAnswer(ctx, f, "assess", func(c *Client) (json.RawMessage, error) {
		return c.Assess(ctx, systemPrompt, userPrompt, schema)
	})
}

// GeneratePrompt asks each client in turn for a prompt.
func (f *Fallback) GeneratePrompt(ctx context.Context, difficulty string) (string, error) {
	return firstAnswer(ctx, f, "generate prompt", func(c *Client) (string, error) {
		return c.GeneratePrompt(ctx, difficulty)
	})
}

// firstAnswer stops at the first success or when ctx ends. A single
// failure is returned as is; several are joined, each tagged with its
// provider.
func firstAnswer[T any](ctx context.Context, f *Fallback, op string, call func(*Client) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)
	for i, c := range f.clients {
		out, err := call(c)
		if err == nil {
			if i > 0 {
				f.logger.InfoContext(ctx, "fallback provider answered", "op", op, "provider", c.Provider())
			}
			return out, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(f.clients) {
			f.logger.WarnContext(ctx, "provider failed, trying the next one",
				"op", op, "provider", c.Provider(), "next", f.clients[i+1].Provider(), "error", err)
		}
	}
	if len(errs) == 1 {
		return zero, errs[0]
	}
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s: %w", f.clients[i].Provider(), err)
	}
	return zero, errors.Join(errs...)
}

// NotConfiguredMessage marks providers skipped for lack of an API key.
const NotConfiguredMessage = "Provider not configured"

// ProviderCheck is the connection test result of one provider.
type ProviderCheck struct {
	Provider string
	Model    string
	OK       bool
	Message  string
}

// CheckProviders runs a connection test against every provider in cfg,
// sorted by name. Providers missing a required key are reported without
// a request.
func CheckProviders(ctx context.Context, cfg *configuration.Config, opts ...Option) []ProviderCheck {
	names := slices.Sorted(maps.Keys(cfg.Providers))
	checks := make([]ProviderCheck, 0, len(names))
	for _, name := range names {
		p := cfg.Providers[name]
		check := ProviderCheck{Provider: name, Model: p.Model}
		if !p.Configured() {
			check.Message = NotConfiguredMessage
			checks = append(checks, check)
			continue
		}

		client, err := newForProvider(ctx, cfg, name, opts...)
		if err != nil {
			check.Message = err.Error()
			checks = append(checks, check)
			continue
		}
		msg, err := client.TestConnection(ctx)
		if err != nil {
			check.Message = err.Error()
		} else {
			check.OK, check.Message = true, msg
		}
		checks = append(checks, check)
	}
	return checks
}

// NewForProviders builds one client per configured provider in names, in
// order. Names without a usable key are skipped and reported.
func NewForProviders(
	ctx context.Context,
	cfg *configuration.Config,
	names []string,
	opts ...Option,
) (clients []*Client, skipped []string, err error) {
	for _, name := range names {
		p, ok := cfg.Providers[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown provider %q", name)
		}
		if !p.Configured() {
			skipped = append(skipped, name)
			continue
		}
		c, err := newForProvider(ctx, cfg, name, opts...)
		if err != nil {
			return nil, nil, err
		}
		clients = append(clients, c)
	}
	return clients, skipped, nil
}

func newForProvider(ctx context.Context, cfg *configuration.Config, name string, opts ...Option) (*Client, error) {
	sub, err := cfg.ForProvider(name)
	if err != nil {
		return nil, err
	}
	return New(ctx, sub, opts...)
}
