// Package config loads the gqlfetch CLI configuration from a YAML file and
// GQLFETCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/github"
	"github.com/Sternrassler/gqlfetch/pkg/gql"
	"github.com/Sternrassler/gqlfetch/pkg/linear"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration.
type Config struct {
	Logging LogConfig     `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Redis   RedisConfig   `yaml:"redis"`
	Cache   CacheConfig   `yaml:"cache"`
	Fetch   FetchConfig   `yaml:"fetch"`
	GitHub  GitHubConfig  `yaml:"github"`
	Linear  LinearConfig  `yaml:"linear"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig holds the metrics listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds the shared cache and rate limit store. Empty Addr keeps
// both in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig holds response cache settings. A zero TTL disables caching.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MemorySize int           `yaml:"memory_size"`
}

// FetchConfig holds the defaults of every paginated fetch.
type FetchConfig struct {
	PageSize       int           `yaml:"page_size"`
	Limit          int           `yaml:"limit"`
	Throttle       time.Duration `yaml:"throttle"`
	IgnoreErrors   bool          `yaml:"ignore_errors"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	UserAgent      string        `yaml:"user_agent"`
}

// GitHubConfig holds GitHub API settings
type GitHubConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// LinearConfig holds Linear API settings
type LinearConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Key           string `yaml:"key"`
	SubPageSize   int    `yaml:"sub_page_size"`
	EnrichWorkers int    `yaml:"enrich_workers"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Cache: CacheConfig{
			MemorySize: 1024,
		},
		Fetch: FetchConfig{
			PageSize:  50,
			Timeout:   30 * time.Second,
			UserAgent: "gqlfetch/1.0",
		},
		GitHub: GitHubConfig{
			Endpoint: github.DefaultEndpoint,
		},
		Linear: LinearConfig{
			Endpoint:      linear.DefaultEndpoint,
			SubPageSize:   linear.DefaultSubPageSize,
			EnrichWorkers: linear.DefaultEnrichWorkers,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Logging.Level, "GQLFETCH_LOG_LEVEL")
	setString(&cfg.Logging.File, "GQLFETCH_LOG_FILE")
	setString(&cfg.Metrics.Addr, "GQLFETCH_METRICS_ADDR")
	setString(&cfg.Redis.Addr, "GQLFETCH_REDIS_ADDR")
	setString(&cfg.Redis.Password, "GQLFETCH_REDIS_PASSWORD")
	setString(&cfg.GitHub.Endpoint, "GQLFETCH_GITHUB_ENDPOINT")
	setString(&cfg.GitHub.Token, "GQLFETCH_GITHUB_TOKEN", "GITHUB_TOKEN")
	setString(&cfg.Linear.Endpoint, "GQLFETCH_LINEAR_ENDPOINT")
	setString(&cfg.Linear.Key, "GQLFETCH_LINEAR_KEY", "LINEAR_API_KEY")
	setString(&cfg.Fetch.UserAgent, "GQLFETCH_USER_AGENT")

	if err := setBool(&cfg.Logging.Pretty, "GQLFETCH_LOG_PRETTY"); err != nil {
		return err
	}
	if err := setBool(&cfg.Fetch.IgnoreErrors, "GQLFETCH_IGNORE_ERRORS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Redis.DB, "GQLFETCH_REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&cfg.Fetch.PageSize, "GQLFETCH_PAGE_SIZE"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Fetch.Throttle, "GQLFETCH_THROTTLE"); err != nil {
		return err
	}
	return setDuration(&cfg.Cache.TTL, "GQLFETCH_CACHE_TTL")
}

// getEnv returns the first non-empty variable among keys.
func getEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value, true
		}
	}
	return "", false
}

func setString(dest *string, keys ...string) {
	if v, ok := getEnv(keys...); ok {
		*dest = v
	}
}

func setBool(dest *bool, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errdefs.Configuration("%s: %v", key, err)
	}
	*dest = b
	return nil
}

func setInt(dest *int, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errdefs.Configuration("%s: %v", key, err)
	}
	*dest = n
	return nil
}

func setDuration(dest *time.Duration, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return errdefs.Configuration("%s: %v", key, err)
	}
	*dest = d
	return nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	switch {
	case c.Fetch.PageSize < 0:
		return errdefs.Configuration("fetch.page_size must not be negative")
	case c.Fetch.Limit < 0:
		return errdefs.Configuration("fetch.limit must not be negative")
	case c.Fetch.Throttle < 0:
		return errdefs.Configuration("fetch.throttle must not be negative")
	case c.Cache.TTL < 0:
		return errdefs.Configuration("cache.ttl must not be negative")
	case c.Linear.EnrichWorkers < 0:
		return errdefs.Configuration("linear.enrich_workers must not be negative")
	}
	return nil
}

// RedisClient returns a client for the configured Redis, or nil when none is
// configured.
func (c *Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// Transport returns the transport configuration for endpoint. rdb may be nil.
func (c *Config) Transport(endpoint string, rdb *redis.Client) gql.Config {
	cfg := gql.DefaultConfig(endpoint)
	cfg.UserAgent = c.Fetch.UserAgent
	cfg.Timeout = c.Fetch.Timeout
	cfg.Redis = rdb
	cfg.CacheTTL = c.Cache.TTL
	cfg.MemoryCacheSize = c.Cache.MemorySize
	cfg.MaxAttempts = c.Fetch.MaxAttempts
	cfg.InitialBackoff = c.Fetch.InitialBackoff
	return cfg
}
