// Package providers adapts the chat completions protocol spoken by OpenAI,
// Gemini's compatibility endpoint, and Ollama to the transport pipeline.
package providers

import (
	"fmt"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// NewRouter creates a router with an adapter per configured provider.
// Only the built-in provider names are accepted.
func NewRouter(configs map[string]configuration.ProviderConfig) (transport.Router, error) {
	adapters := make(map[string]transport.ProviderAdapter, len(configs))
	for name, cfg := range configs {
		if _, ok := configuration.Preset(name); !ok {
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
		adapters[name] = NewChatCompletionsAdapter(name, cfg)
	}
	return &router{adapters: adapters}, nil
}

type router struct {
	adapters map[string]transport.ProviderAdapter
}

// Pick returns the adapter for provider.
func (r *router) Pick(provider string) (transport.ProviderAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}

