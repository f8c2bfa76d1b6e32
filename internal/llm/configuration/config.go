// Package configuration holds the settings of the examiner-model client:
// provider endpoints and keys, rate limits, response caching, and
// logging behaviour.
package configuration

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the configuration for the LLM client.
type Config struct {
	HTTPTimeout time.Duration `json:"http_timeout" validate:"gte=0"`
	HTTPClient  *http.Client  `json:"-"            validate:"-"`

	// Provider names the entry of Providers used for every call.
	Provider  string                    `json:"provider"  validate:"required"`
	Providers map[string]ProviderConfig `json:"providers" validate:"required,dive"`

	// Temperature applies to assessments; prompt generation and connection
	// tests use their own fixed values.
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens"  validate:"gte=0"`

	RateLimit     RateLimitConfig     `json:"rate_limit"`
	Cache         CacheConfig         `json:"cache"`
	Observability ObservabilityConfig `json:"observability"`
}

// ProviderConfig describes one OpenAI-compatible chat completions endpoint.
type ProviderConfig struct {
	Endpoint       string            `json:"endpoint"         validate:"required,url"`
	APIKey         string            `json:"-"`
	APIKeyEnv      string            `json:"api_key_env"`
	DefaultAPIKey  string            `json:"default_api_key"`
	RequiresAPIKey bool              `json:"requires_api_key"`
	Model          string            `json:"model"            validate:"required"`
	Timeout        time.Duration     `json:"timeout"          validate:"gte=0"`
	Headers        map[string]string `json:"headers"`

	// RequestsPerMinute is the provider's documented limit; 0 means no
	// local limit (self-hosted models).
	RequestsPerMinute int `json:"requests_per_minute" validate:"gte=0"`
	MaxTokensLimit    int `json:"max_tokens_limit"    validate:"gte=0"`
}

// ResolveAPIKey returns the explicit key, then the key from APIKeyEnv,
// then DefaultAPIKey.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		if v := os.Getenv(p.APIKeyEnv); v != "" {
			return v
		}
	}
	return p.DefaultAPIKey
}

// RateLimitConfig combines the per-process token bucket with an optional
// Redis fixed window shared by every process using the same key.
type RateLimitConfig struct {
	Local  LocalRateLimitConfig  `json:"local"`
	Global GlobalRateLimitConfig `json:"global"`
}

// LocalRateLimitConfig controls the in-memory limiter. The rate comes from
// the provider's RequestsPerMinute.
type LocalRateLimitConfig struct {
	Enabled   bool `json:"enabled"`
	BurstSize int  `json:"burst_size" validate:"gte=0"`
}

// GlobalRateLimitConfig controls the Redis fixed-window limiter.
type GlobalRateLimitConfig struct {
	Enabled           bool          `json:"enabled"`
	RequestsPerMinute int           `json:"requests_per_minute" validate:"gte=0"`
	RedisAddr         string        `json:"redis_addr"          validate:"required_if=Enabled true"`
	RedisPassword     string        `json:"-"`
	RedisDB           int           `json:"redis_db"            validate:"gte=0"`
	ConnectTimeout    time.Duration `json:"connect_timeout"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig controls reply caching. Only assessment replies are cached,
// so resubmitting an unchanged essay against the same prompt and model
// returns the same bands. Generated prompts are always fresh.
type CacheConfig struct {
	Enabled       bool          `json:"enabled"`
	Backend       string        `json:"backend"     validate:"omitempty,oneof=memory redis"`
	TTL           time.Duration `json:"ttl"         validate:"gte=0"`
	MaxEntries    int           `json:"max_entries" validate:"gte=0"`
	RedisAddr     string        `json:"redis_addr"  validate:"required_if=Backend redis"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db"    validate:"gte=0"`
}

// ObservabilityConfig controls request logging.
type ObservabilityConfig struct {
	RedactPrompts bool `json:"redact_prompts"`
}

// Validate checks field constraints and that Provider names a configured
// entry.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid llm configuration: %w", err)
	}
	if _, ok := c.Providers[c.Provider]; !ok {
		return fmt.Errorf("invalid llm configuration: provider %q is not configured", c.Provider)
	}
	return nil
}

// Active returns the configuration of the selected provider.
func (c *Config) Active() (ProviderConfig, bool) {
	p, ok := c.Providers[c.Provider]
	return p, ok
}

// ForProvider returns a copy of c that routes every call to name. The
// provider table is shared with c and must not be modified.
func (c *Config) ForProvider(name string) (*Config, error) {
	if _, ok := c.Providers[name]; !ok {
		return nil, fmt.Errorf("invalid llm configuration: provider %q is not configured", name)
	}
	cp := *c
	cp.Provider = name
	return &cp, nil
}

// Configured reports whether the provider has the key it needs.
func (p ProviderConfig) Configured() bool {
	return !p.RequiresAPIKey || p.ResolveAPIKey() != ""
}
