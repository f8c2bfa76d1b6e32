// Package config loads the user-facing settings of the ielts CLI and keeps
// provider API keys encrypted on disk.
//
// Settings live in a JSON file (by default $HOME/.ielts/config.json) read
// through viper. Every key can be overridden by an IELTS_ environment
// variable with dots replaced by underscores, e.g. IELTS_TEMPORAL_HOST_PORT.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/llm/configuration"
)

// Names of the files kept in the application directory.
const (
	DirName        = ".ielts"
	ConfigFileName = "config.json"
	KeysFileName   = "keys.json"
	DatabaseName   = "ielts.db"
)

// DefaultAutoSaveInterval is how often practice drafts are saved.
const DefaultAutoSaveInterval = 30 * time.Second

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "IELTS"

// ErrUnknownKey is returned by Set for keys that are not settings.
var ErrUnknownKey = errors.New("unknown configuration key")

var validate = validator.New(validator.WithRequiredStructEnabled())

// App is the persisted CLI configuration.
type App struct {
	Provider    string  `mapstructure:"provider"    validate:"required,oneof=openai google ollama"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"    validate:"omitempty,url"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens"  validate:"gte=0"`

	// FallbackProviders are tried in order when Provider fails an
	// assessment or prompt request.
	FallbackProviders []string `mapstructure:"fallback_providers" validate:"dive,oneof=openai google ollama"`

	DefaultTaskType domain.TaskType `mapstructure:"default_task_type" validate:"required"`
	DatabasePath    string          `mapstructure:"database_path"     validate:"required"`

	LogLevel  string `mapstructure:"log_level"  validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	Temporal    TemporalConfig `mapstructure:"temporal"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Preferences Preferences    `mapstructure:"preferences"`
}

// TemporalConfig points the CLI and worker at a Temporal frontend.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"  validate:"required,hostname_port"`
	Namespace string `mapstructure:"namespace"  validate:"required"`
	TaskQueue string `mapstructure:"task_queue" validate:"required"`
}

// RedisConfig enables the shared reply cache and the global request
// window. Both stay off while Addr is empty.
type RedisConfig struct {
	Addr              string `mapstructure:"addr"                validate:"omitempty,hostname_port"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"                  validate:"gte=0"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// Preferences tune the interactive practice flow.
type Preferences struct {
	ShowDetailedFeedback bool          `mapstructure:"show_detailed_feedback"`
	WordCountWarnings    bool          `mapstructure:"word_count_warnings"`
	CacheAssessments     bool          `mapstructure:"cache_assessments"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	// AutoSaveInterval is how often a draft is stored while typing; 0
	// turns auto-save off.
	AutoSaveInterval time.Duration `mapstructure:"auto_save_interval" validate:"gte=0"`
}

// Validate checks field constraints and that the default task type is a
// Writing task.
func (a *App) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !a.DefaultTaskType.IsWriting() {
		return fmt.Errorf("invalid configuration: %w: %q", domain.ErrUnsupportedTaskType, a.DefaultTaskType)
	}
	return nil
}

// DefaultDir returns $HOME/.ielts.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Manager reads and writes one configuration file.
type Manager struct {
	v    *viper.Viper
	path string
}

// Load reads the configuration at path. An empty path means
// DefaultDir()/config.json. A missing file is not an error; defaults and
// environment overrides apply and Save creates the file.
func Load(path string) (*Manager, error) {
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, ConfigFileName)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, filepath.Dir(path))

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	m := &Manager{v: v, path: path}
	if _, err := m.App(); err != nil {
		return nil, err
	}
	return m, nil
}

// defaults holds every setting and its default value. The value's type
// decides how Set parses strings for that key.
func defaults(dir string) map[string]any {
	return map[string]any{
		"provider":          configuration.ProviderOpenAI,
		"model":             "",
		"base_url":          "",
		"temperature":       configuration.DefaultTemperature,
		"max_tokens":        configuration.DefaultMaxTokens,
		"default_task_type": string(domain.TaskWriting2),
		"database_path":     filepath.Join(dir, DatabaseName),
		"log_level":         "warn",
		"log_format":        "text",

		"fallback_providers": []string{},

		"temporal.host_port":  "localhost:7233",
		"temporal.namespace":  "default",
		"temporal.task_queue": "ielts-practice",

		"redis.addr":                "",
		"redis.password":            "",
		"redis.db":                  0,
		"redis.requests_per_minute": 0,

		"preferences.show_detailed_feedback": true,
		"preferences.word_count_warnings":    true,
		"preferences.cache_assessments":      true,
		"preferences.cache_ttl":              configuration.DefaultCacheTTL,
		"preferences.auto_save_interval":     DefaultAutoSaveInterval,
	}
}

func setDefaults(v *viper.Viper, dir string) {
	for key, val := range defaults(dir) {
		v.SetDefault(key, val)
	}
}

// Path returns the configuration file path.
func (m *Manager) Path() string { return m.path }

// Dir returns the directory holding the configuration file.
func (m *Manager) Dir() string { return filepath.Dir(m.path) }

// App decodes and validates the current settings.
func (m *Manager) App() (*App, error) {
	var app App
	if err := m.v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	app.DatabasePath = expandHome(app.DatabasePath)
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Keys lists every settable key in sorted order.
func (m *Manager) Keys() []string {
	keys := m.v.AllKeys()
	slices.Sort(keys)
	return keys
}

// Get returns the effective value of key.
func (m *Manager) Get(key string) (any, error) {
	key = strings.ToLower(key)
	if !slices.Contains(m.v.AllKeys(), key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return m.v.Get(key), nil
}

// Set changes one key and saves the file. A value that would make the
// configuration invalid is rejected and nothing is written.
func (m *Manager) Set(key, value string) error {
	key = strings.ToLower(key)
	if !slices.Contains(m.v.AllKeys(), key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	prev := m.v.Get(key)
	parsed, err := coerce(defaults(m.Dir())[key], value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	m.v.Set(key, parsed)
	if _, err := m.App(); err != nil {
		m.v.Set(key, prev)
		return err
	}
	return m.Save()
}

// Save writes the effective settings to the configuration file.
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.Dir(), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := m.v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("write config %s: %w", m.path, err)
	}
	return os.Chmod(m.path, 0o600)
}

// coerce parses value into the type of the key's default so the file
// keeps numbers and booleans unquoted.
func coerce(def any, value string) (any, error) {
	switch def.(type) {
	case bool:
		return strconv.ParseBool(value)
	case int:
		return strconv.Atoi(value)
	case float64:
		return strconv.ParseFloat(value, 64)
	case time.Duration:
		d, err := time.ParseDuration(value)
		return d.String(), err
	case []string:
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
