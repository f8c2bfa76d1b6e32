package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.InDelta(t, 0.7, cfg.Temperature, 0)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Len(t, cfg.Providers, 3)
	assert.True(t, cfg.RateLimit.Local.Enabled)
	assert.False(t, cfg.RateLimit.Global.Enabled)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.True(t, cfg.Observability.RedactPrompts)

	active, ok := cfg.Active()
	require.True(t, ok)
	assert.Equal(t, "gpt-4", active.Model)
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		model    string
		rpm      int
		needsKey bool
	}{
		{ProviderOpenAI, "https://api.openai.com/v1", "gpt-4", 3500, true},
		{ProviderGoogle, "https://generativelanguage.googleapis.com/v1beta/openai/", "gemini-2.5-flash", 60, true},
		{ProviderOllama, "http://localhost:11434/v1", "llama2", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Preset(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.endpoint, p.Endpoint)
			assert.Equal(t, tt.model, p.Model)
			assert.Equal(t, tt.rpm, p.RequestsPerMinute)
			assert.Equal(t, tt.needsKey, p.RequiresAPIKey)
		})
	}

	_, ok := Preset("anthropic")
	assert.False(t, ok)
}

func TestPresetIsACopy(t *testing.T) {
	p, _ := Preset(ProviderOpenAI)
	p.Model = "changed"
	again, _ := Preset(ProviderOpenAI)
	assert.Equal(t, "gpt-4", again.Model)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("IELTS_TEST_KEY", "from-env")

	assert.Equal(t, "explicit", ProviderConfig{APIKey: "explicit", APIKeyEnv: "IELTS_TEST_KEY"}.ResolveAPIKey())
	assert.Equal(t, "from-env", ProviderConfig{APIKeyEnv: "IELTS_TEST_KEY", DefaultAPIKey: "d"}.ResolveAPIKey())
	assert.Equal(t, "ollama", ProviderConfig{APIKeyEnv: "IELTS_TEST_UNSET_KEY", DefaultAPIKey: "ollama"}.ResolveAPIKey())
	assert.Empty(t, ProviderConfig{}.ResolveAPIKey())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, true},
		{"empty provider", func(c *Config) { c.Provider = "" }, true},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, true},
		{"negative max tokens", func(c *Config) { c.MaxTokens = -1 }, true},
		{"bad endpoint", func(c *Config) {
			p := c.Providers[ProviderOpenAI]
			p.Endpoint = "not a url"
			c.Providers[ProviderOpenAI] = p
		}, true},
		{"missing model", func(c *Config) {
			p := c.Providers[ProviderOllama]
			p.Model = ""
			c.Providers[ProviderOllama] = p
		}, true},
		{"global limiter without redis", func(c *Config) { c.RateLimit.Global.Enabled = true }, true},
		{"global limiter with redis", func(c *Config) {
			c.RateLimit.Global.Enabled = true
			c.RateLimit.Global.RedisAddr = "localhost:6379"
		}, false},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"redis cache without address", func(c *Config) { c.Cache.Backend = CacheBackendRedis }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestForProvider(t *testing.T) {
	cfg := DefaultConfig()

	google, err := cfg.ForProvider(ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, google.Provider)
	assert.Equal(t, ProviderOpenAI, cfg.Provider, "original unchanged")
	active, ok := google.Active()
	require.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash", active.Model)

	_, err = cfg.ForProvider("anthropic")
	assert.Error(t, err)
}

func TestProviderConfigured(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	tests := []struct {
		name string
		p    ProviderConfig
		want bool
	}{
		{"keyless provider", ProviderConfig{DefaultAPIKey: "ollama"}, true},
		{"explicit key", ProviderConfig{RequiresAPIKey: true, APIKey: "sk-1"}, true},
		{"missing key", ProviderConfig{RequiresAPIKey: true, APIKeyEnv: "GOOGLE_API_KEY"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Configured())
		})
	}
}
