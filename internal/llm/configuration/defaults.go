package configuration

import (
	"maps"
	"time"
)

// Supported providers. All of them speak the chat completions protocol.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderOllama = "ollama"
)

// HTTP and connection constants.
const (
	DefaultMaxIdleConns       = 100
	DefaultIdleTimeoutSeconds = 90
	DefaultHTTPTimeoutSeconds = 30
)

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// Rate limiting and cache constants.
const (
	DefaultBurstSize       = 1
	DefaultConnectTimeout  = 5 * time.Second
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCacheMaxEntries = 256
)

var presets = map[string]ProviderConfig{
	ProviderOpenAI: {
		Endpoint:          "https://api.openai.com/v1",
		APIKeyEnv:         "OPENAI_API_KEY",
		RequiresAPIKey:    true,
		Model:             "gpt-4",
		RequestsPerMinute: 3500,
		MaxTokensLimit:    4096,
	},
	ProviderGoogle: {
		Endpoint:          "https://generativelanguage.googleapis.com/v1beta/openai/",
		APIKeyEnv:         "GOOGLE_API_KEY",
		RequiresAPIKey:    true,
		Model:             "gemini-2.5-flash",
		RequestsPerMinute: 60,
		MaxTokensLimit:    8192,
	},
	ProviderOllama: {
		Endpoint:       "http://localhost:11434/v1",
		DefaultAPIKey:  "ollama",
		Model:          "llama2",
		MaxTokensLimit: 2048,
	},
}

// Preset returns the built-in settings for a provider.
func Preset(name string) (ProviderConfig, bool) {
	p, ok := presets[name]
	if ok {
		p.Headers = maps.Clone(p.Headers)
	}
	return p, ok
}

// ProviderNames lists the built-in providers in display order.
func ProviderNames() []string {
	return []string{ProviderOpenAI, ProviderGoogle, ProviderOllama}
}

// DefaultConfig returns a configuration with every built-in provider and
// OpenAI selected. Global rate limiting and caching are off until Redis or
// a cache backend is configured.
func DefaultConfig() *Config {
	providers := make(map[string]ProviderConfig, len(presets))
	for _, name := range ProviderNames() {
		providers[name], _ = Preset(name)
	}
	return &Config{
		HTTPTimeout: DefaultHTTPTimeoutSeconds * time.Second,
		Provider:    ProviderOpenAI,
		Providers:   providers,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		RateLimit: RateLimitConfig{
			Local: LocalRateLimitConfig{
				Enabled:   true,
				BurstSize: DefaultBurstSize,
			},
			Global: GlobalRateLimitConfig{
				ConnectTimeout: DefaultConnectTimeout,
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    CacheBackendMemory,
			TTL:        DefaultCacheTTL,
			MaxEntries: DefaultCacheMaxEntries,
		},
		Observability: ObservabilityConfig{
			RedactPrompts: true,
		},
	}
}
