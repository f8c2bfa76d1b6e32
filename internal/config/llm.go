package config

import (
	"fmt"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
)

// KeySource resolves stored API keys by provider name.
type KeySource interface {
	Get(provider string) (string, bool, error)
}

// LLMConfig builds the examiner client configuration. Model and base URL
// override the selected provider's preset. For every provider a key from
// keys is used when present; otherwise the provider's environment
// variable applies. A nil keys skips the lookup.
func (a *App) LLMConfig(keys KeySource) (*configuration.Config, error) {
	cfg := configuration.DefaultConfig()
	cfg.Provider = a.Provider
	cfg.Temperature = a.Temperature
	if a.MaxTokens > 0 {
		cfg.MaxTokens = a.MaxTokens
	}

	p, ok := cfg.Providers[a.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", a.Provider)
	}
	if a.Model != "" {
		p.Model = a.Model
	}
	if a.BaseURL != "" {
		p.Endpoint = a.BaseURL
	}
	cfg.Providers[a.Provider] = p

	// Fallback providers and connection tests need every stored key.
	if keys != nil {
		for name, pc := range cfg.Providers {
			key, found, err := keys.Get(name)
			if err != nil {
				return nil, fmt.Errorf("load %s api key: %w", name, err)
			}
			if found {
				pc.APIKey = key
				cfg.Providers[name] = pc
			}
		}
	}
	for _, name := range a.FallbackProviders {
		if _, ok := cfg.Providers[name]; !ok {
			return nil, fmt.Errorf("unknown fallback provider %q", name)
		}
	}

	cfg.Cache.Enabled = a.Preferences.CacheAssessments
	cfg.Cache.TTL = a.Preferences.CacheTTL

	if a.Redis.Addr != "" {
		cfg.Cache.Backend = configuration.CacheBackendRedis
		cfg.Cache.RedisAddr = a.Redis.Addr
		cfg.Cache.RedisPassword = a.Redis.Password
		cfg.Cache.RedisDB = a.Redis.DB

		if a.Redis.RequestsPerMinute > 0 {
			cfg.RateLimit.Global.Enabled = true
			cfg.RateLimit.Global.RequestsPerMinute = a.Redis.RequestsPerMinute
			cfg.RateLimit.Global.RedisAddr = a.Redis.Addr
			cfg.RateLimit.Global.RedisPassword = a.Redis.Password
			cfg.RateLimit.Global.RedisDB = a.Redis.DB
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
