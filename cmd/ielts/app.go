package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-ielts/internal/analysis"
	"github.com/ahrav/go-ielts/internal/config"
	"github.com/ahrav/go-ielts/internal/criteria"
	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/llm"
	"github.com/ahrav/go-ielts/internal/llm/cache"
	"github.com/ahrav/go-ielts/internal/llm/configuration"
	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/internal/storage"
)

// PassphraseEnv, when set, encrypts the key store with a passphrase
// instead of the generated secret.
const PassphraseEnv = "IELTS_KEY_PASSPHRASE"

// cli holds the state shared by every command. Resources are opened on
// first use and released by close.
type cli struct {
	configPath string
	verbose    bool
	stderr     io.Writer

	cfg    *config.Manager
	app    *config.App
	logger *slog.Logger
	store  *storage.Store
	keys   *config.KeyStore
	client *llm.Client
	redis  *redis.Client
	cache  *cache.MemoryStore
}

func newCLI() *cli {
	return &cli{stderr: os.Stderr}
}

func (c *cli) loadConfig() (*config.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	m, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	app, err := m.App()
	if err != nil {
		return nil, err
	}
	if c.verbose {
		app.LogLevel = "debug"
	}
	c.cfg, c.app = m, app
	c.logger = app.NewLogger(c.stderr)
	slog.SetDefault(c.logger)
	return app, nil
}

func (c *cli) openStore() (*storage.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	app, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(app.DatabasePath), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := storage.Open(app.DatabasePath)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *cli) keyStore() (*config.KeyStore, error) {
	if c.keys != nil {
		return c.keys, nil
	}
	if _, err := c.loadConfig(); err != nil {
		return nil, err
	}
	ks, err := config.OpenKeyStore(c.cfg.Dir(), os.Getenv(PassphraseEnv))
	if err != nil {
		return nil, err
	}
	c.keys = ks
	return ks, nil
}

// llmConfig resolves the examiner configuration with every stored key.
func (c *cli) llmConfig() (*configuration.Config, error) {
	app, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	ks, err := c.keyStore()
	if err != nil {
		return nil, err
	}
	return app.LLMConfig(ks)
}

// llmOptions are shared by every client the command builds: one Redis
// connection for the cache and global limiter, and one in-process reply
// cache across providers.
func (c *cli) llmOptions(cfg *configuration.Config) ([]llm.Option, error) {
	opts := []llm.Option{llm.WithLogger(c.logger)}
	if cfg.Cache.Backend == configuration.CacheBackendRedis || cfg.RateLimit.Global.Enabled {
		if c.redis == nil {
			c.redis = redis.NewClient(&redis.Options{
				Addr:     c.app.Redis.Addr,
				Password: c.app.Redis.Password,
				DB:       c.app.Redis.DB,
			})
		}
		return append(opts, llm.WithRedis(c.redis)), nil
	}
	if cfg.Cache.Enabled {
		if c.cache == nil {
			store, err := cache.NewMemoryStore(cfg.Cache.MaxEntries)
			if err != nil {
				return nil, err
			}
			c.cache = store
		}
		opts = append(opts, llm.WithCacheStore(c.cache))
	}
	return opts, nil
}

func (c *cli) llmClient(ctx context.Context) (*llm.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	llmCfg, err := c.llmConfig()
	if err != nil {
		return nil, err
	}
	active, _ := llmCfg.Active()
	if !active.Configured() {
		return nil, fmt.Errorf("no API key for %s: run 'ielts config set-key %s' or set %s",
			llmCfg.Provider, llmCfg.Provider, active.APIKeyEnv)
	}
	opts, err := c.llmOptions(llmCfg)
	if err != nil {
		return nil, err
	}
	client, err := llm.New(ctx, llmCfg, opts...)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// examiner is the active client, wrapped in a fallback chain when
// fallback providers are configured.
func (c *cli) examiner(ctx context.Context) (examinerClient, error) {
	primary, err := c.llmClient(ctx)
	if err != nil {
		return nil, err
	}
	app := c.app
	if len(app.FallbackProviders) == 0 {
		return primary, nil
	}

	llmCfg, err := c.llmConfig()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range app.FallbackProviders {
		if name != primary.Provider() && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	opts, err := c.llmOptions(llmCfg)
	if err != nil {
		return nil, err
	}
	backups, skipped, err := llm.NewForProviders(ctx, llmCfg, names, opts...)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		c.logger.Warn("Fallback provider has no API key, skipping", "provider", name)
	}
	return llm.NewFallback(c.logger, append([]*llm.Client{primary}, backups...)...)
}

// examinerClient assesses essays and writes prompts.
type examinerClient interface {
	analysis.Assessor
	session.PromptGenerator
}

// manager builds a session manager. Without an examiner client it can
// list, compare, and clean up but not assess.
func (c *cli) manager(ctx context.Context, withExaminer bool) (*session.Manager, error) {
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	catalog := criteria.NewCatalog()
	opts := []session.Option{session.WithCatalog(catalog), session.WithLogger(c.logger)}
	if !withExaminer {
		return session.NewManager(store, unavailableAnalyzer{}, opts...), nil
	}

	ex, err := c.examiner(ctx)
	if err != nil {
		return nil, err
	}
	analyzer := analysis.NewResponseAnalyzer(ex, catalog, c.logger)
	opts = append(opts, session.WithPromptGenerator(ex))
	return session.NewManager(store, analyzer, opts...), nil
}

func (c *cli) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil && c.logger != nil {
			c.logger.Warn("Failed to close database", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil && c.logger != nil {
			c.logger.Warn("Failed to close Redis connection", "error", err)
		}
	}
}

var errNoExaminer = errors.New("assessment is not available for this command")

type unavailableAnalyzer struct{}

func (unavailableAnalyzer) AnalyzeResponse(
	context.Context,
	string,
	domain.UserResponse,
	domain.TaskType,
) (domain.Assessment, error) {
	return domain.Assessment{}, errNoExaminer
}
