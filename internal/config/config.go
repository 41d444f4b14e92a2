package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jengzang/sites-backend-go/internal/loader"
)

// Config 应用配置
type Config struct {
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	JWTSecret string `yaml:"jwt_secret"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// SafeMode is the flag the process starts with
	SafeMode bool `yaml:"safe_mode"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Prefetch  PrefetchConfig  `yaml:"prefetch"`
	Loader    loader.Settings `yaml:"loader"`
}

// RateLimitConfig limits viewport updates per client
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// PrefetchConfig configures the image warmer
type PrefetchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Concurrency int64         `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	// RedisAddr enables cross-instance dedup of warmed URLs when set
	RedisAddr string        `yaml:"redis_addr"`
	DedupTTL  time.Duration `yaml:"dedup_ttl"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:      ":8080",
		DBPath:    "./data/sites/sites.db",
		JWTSecret: "your-secret-key-change-in-production",
		LogLevel:  "info",
		LogFormat: "text",
		RateLimit: RateLimitConfig{
			Requests: 20,
			Window:   time.Second,
		},
		Prefetch: PrefetchConfig{
			Enabled:     true,
			Concurrency: 4,
			Timeout:     10 * time.Second,
			DedupTTL:    24 * time.Hour,
		},
		Loader: loader.DefaultSettings(),
	}
}

// Load 加载配置: defaults -> config/config.yml -> config/config.local.yml -> env
func Load() (*Config, error) {
	return LoadFrom("config")
}

// LoadFrom loads configuration files from dir and applies env overrides
func LoadFrom(dir string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(dir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Prefetch.RedisAddr = v
	}

	var errs []error
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	envBool("SAFE_MODE", &c.SafeMode)
	envBool("PREFETCH_ENABLED", &c.Prefetch.Enabled)
	envInt("LOADER_VIEWPORT_LIMIT", &c.Loader.ViewportLimit.Normal)
	envInt("LOADER_VIEWPORT_LIMIT_SAFE", &c.Loader.ViewportLimit.Safe)
	envInt("LOADER_BOOTSTRAP_LIMIT", &c.Loader.BootstrapLimit.Normal)
	envInt("LOADER_BOOTSTRAP_LIMIT_SAFE", &c.Loader.BootstrapLimit.Safe)
	envDuration("LOADER_DEBOUNCE", &c.Loader.Debounce)
	envDuration("LOADER_SLOW_QUERY_THRESHOLD", &c.Loader.SlowQueryThreshold)
	envDuration("LOADER_WARMUP_DELAY", &c.Loader.WarmupDelay)

	return errors.Join(errs...)
}

// Validate checks the assembled configuration
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit requests and window must be positive")
	}
	if c.Prefetch.Enabled && c.Prefetch.Concurrency <= 0 {
		return fmt.Errorf("prefetch concurrency must be positive")
	}
	if err := c.Loader.Validate(); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	return nil
}
