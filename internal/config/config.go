package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EXPLORER_"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config holds everything the explorer reads at startup.
type Config struct {
	APIBase     string        `env:"API_BASE" validate:"required,url"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`

	Storage       string        `env:"STORAGE" validate:"oneof=memory sqlite redis"`
	DataDir       string        `env:"DATA_DIR" validate:"required_if=Storage sqlite"`
	RedisURL      string        `env:"REDIS_URL" validate:"required_if=Storage redis"`
	Namespace     string        `env:"NAMESPACE" validate:"required,max=64,excludesall=:"`
	WatchInterval time.Duration `env:"WATCH_INTERVAL" validate:"gt=0"`
	MaxValueBytes int           `env:"MAX_VALUE_BYTES" validate:"gte=0"`

	ListFreshFor    time.Duration `env:"LIST_FRESH_FOR" validate:"gt=0"`
	RecordFreshFor  time.Duration `env:"RECORD_FRESH_FOR" validate:"gt=0"`
	RetainFor       time.Duration `env:"RETAIN_FOR" validate:"gt=0"`
	RevalidateEvery time.Duration `env:"REVALIDATE_EVERY" validate:"gt=0"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" validate:"min=1,max=10"`
	RetryBase       time.Duration `env:"RETRY_BASE" validate:"gt=0"`
	SearchDebounce  time.Duration `env:"SEARCH_DEBOUNCE" validate:"gte=0"`

	LogPath     string `env:"LOG_PATH"`
	LogLevel    string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	MetricsAddr string `env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	Theme       string `env:"THEME" validate:"omitempty,oneof=light dark"`
}

const (
	defaultConfigPath = "~/.config/explorer/config.toml"
	defaultDataDir    = "~/.local/share/explorer"
	defaultLogPath    = "~/.local/state/explorer/explorer.log"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		APIBase:         "https://rickandmortyapi.com",
		HTTPTimeout:     10 * time.Second,
		Storage:         StorageSQLite,
		DataDir:         mustExpand(defaultDataDir),
		Namespace:       "explorer",
		WatchInterval:   time.Second,
		MaxValueBytes:   5 << 20,
		ListFreshFor:    5 * time.Minute,
		RecordFreshFor:  10 * time.Minute,
		RetainFor:       10 * time.Minute,
		RevalidateEvery: 6 * time.Minute,
		MaxAttempts:     3,
		RetryBase:       250 * time.Millisecond,
		SearchDebounce:  400 * time.Millisecond,
		LogPath:         mustExpand(defaultLogPath),
		LogLevel:        "info",
	}
}

// fileConfig is the TOML shape. Durations are strings such as "30s".
type fileConfig struct {
	APIBase         *string `toml:"api_base"`
	HTTPTimeout     *string `toml:"http_timeout"`
	Storage         *string `toml:"storage"`
	DataDir         *string `toml:"data_dir"`
	RedisURL        *string `toml:"redis_url"`
	Namespace       *string `toml:"namespace"`
	WatchInterval   *string `toml:"watch_interval"`
	MaxValueBytes   *int    `toml:"max_value_bytes"`
	ListFreshFor    *string `toml:"list_fresh_for"`
	RecordFreshFor  *string `toml:"record_fresh_for"`
	RetainFor       *string `toml:"retain_for"`
	RevalidateEvery *string `toml:"revalidate_every"`
	MaxAttempts     *int    `toml:"max_attempts"`
	RetryBase       *string `toml:"retry_base"`
	SearchDebounce  *string `toml:"search_debounce"`
	LogPath         *string `toml:"log_path"`
	LogLevel        *string `toml:"log_level"`
	MetricsAddr     *string `toml:"metrics_addr"`
	Theme           *string `toml:"theme"`
}

// Load reads the config file at path (or the default location), applies
// EXPLORER_* environment overrides and validates the result. A missing file
// is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw fileConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := raw.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// ignored.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", invalid[0].Field(), invalid[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DBPath returns the sqlite database location.
func (c Config) DBPath() string {
	dir := strings.TrimSpace(c.DataDir)
	if dir == "" {
		dir = mustExpand(defaultDataDir)
	}
	return filepath.Join(dir, "explorer.db")
}

func (c *Config) normalize() {
	c.APIBase = strings.TrimSpace(c.APIBase)
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	c.Namespace = strings.TrimSpace(c.Namespace)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Theme = strings.ToLower(strings.TrimSpace(c.Theme))
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	if dir := strings.TrimSpace(c.DataDir); dir != "" {
		c.DataDir = mustExpand(dir)
	}
	if p := strings.TrimSpace(c.LogPath); p != "" {
		c.LogPath = mustExpand(p)
	}
}

func (f fileConfig) apply(cfg *Config) error {
	setString(&cfg.APIBase, f.APIBase)
	setString(&cfg.Storage, f.Storage)
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.RedisURL, f.RedisURL)
	setString(&cfg.Namespace, f.Namespace)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.MetricsAddr, f.MetricsAddr)
	setString(&cfg.Theme, f.Theme)
	// An explicitly empty log_path disables file logging.
	if f.LogPath != nil {
		cfg.LogPath = strings.TrimSpace(*f.LogPath)
	}
	if f.MaxValueBytes != nil {
		cfg.MaxValueBytes = *f.MaxValueBytes
	}
	if f.MaxAttempts != nil {
		cfg.MaxAttempts = *f.MaxAttempts
	}

	durations := []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"http_timeout", f.HTTPTimeout, &cfg.HTTPTimeout},
		{"watch_interval", f.WatchInterval, &cfg.WatchInterval},
		{"list_fresh_for", f.ListFreshFor, &cfg.ListFreshFor},
		{"record_fresh_for", f.RecordFreshFor, &cfg.RecordFreshFor},
		{"retain_for", f.RetainFor, &cfg.RetainFor},
		{"revalidate_every", f.RevalidateEvery, &cfg.RevalidateEvery},
		{"retry_base", f.RetryBase, &cfg.RetryBase},
		{"search_debounce", f.SearchDebounce, &cfg.SearchDebounce},
	}
	for _, d := range durations {
		if d.raw == nil || strings.TrimSpace(*d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(*d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

// setString overwrites dst with a non-blank value.
func setString(dst *string, v *string) {
	if v == nil {
		return
	}
	if trimmed := strings.TrimSpace(*v); trimmed != "" {
		*dst = trimmed
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
