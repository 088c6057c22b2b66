// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the binaries read. Values come from the
// environment (optionally seeded from a .env file) with the defaults below.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	RedisAddr   string `mapstructure:"redis_addr"`
	Port        string `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`

	PodcastIndex PodcastIndexConfig `mapstructure:"podcastindex"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Schedule     ScheduleConfig     `mapstructure:"schedule"`
	Quality      QualityConfig      `mapstructure:"quality"`
	API          APIConfig          `mapstructure:"api"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

type PodcastIndexConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	APISecret  string        `mapstructure:"api_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	UserAgent  string        `mapstructure:"user_agent"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SyncConfig exposes the reconciliation batch limits. EpisodeBatchSize is the
// per-request cap, MaxEpisodeBatches bounds the requests per invocation and
// UpsertChunkSize bounds concurrent writes.
type SyncConfig struct {
	EpisodeBatchSize  int `mapstructure:"episode_batch_size"`
	MaxEpisodeBatches int `mapstructure:"max_episode_batches"`
	UpsertChunkSize   int `mapstructure:"upsert_chunk_size"`
	RecentMax         int `mapstructure:"recent_max"`
}

type ScheduleConfig struct {
	RecentSync string `mapstructure:"recent_sync"`
	SyncAll    string `mapstructure:"sync_all"`
	Quality    string `mapstructure:"quality"`
}

type QualityConfig struct {
	FailedWindow   time.Duration `mapstructure:"failed_window"`
	FailedCritical int           `mapstructure:"failed_critical"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

type APIConfig struct {
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

var defaults = map[string]any{
	"database_url": "",
	"redis_addr":   "127.0.0.1:6379",
	"port":         "8080",
	"log_level":    "info",

	"podcastindex.api_key":     "",
	"podcastindex.api_secret":  "",
	"podcastindex.base_url":    "https://api.podcastindex.org/api/1.0",
	"podcastindex.user_agent":  "podcast-curator/1.0",
	"podcastindex.rate_limit":  5.0,
	"podcastindex.max_retries": 3,
	"podcastindex.timeout":     30 * time.Second,

	"sync.episode_batch_size":  1000,
	"sync.max_episode_batches": 5,
	"sync.upsert_chunk_size":   100,
	"sync.recent_max":          500,

	"schedule.recent_sync": "@every 15m",
	"schedule.sync_all":    "@daily",
	"schedule.quality":     "@every 1h",

	"quality.failed_window":   24 * time.Hour,
	"quality.failed_critical": 5,
	"quality.stale_after":     7 * 24 * time.Hour,

	"api.rate_limit": 2.0,
	"api.rate_burst": 5,

	"worker.concurrency": 2,
}

// Load reads .env (if present) and the process environment. Nested keys map
// to upper-case env vars with dots replaced by underscores, so
// sync.episode_batch_size is read from SYNC_EPISODE_BATCH_SIZE.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the sync pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Sync.EpisodeBatchSize <= 0 {
		return fmt.Errorf("%w: SYNC_EPISODE_BATCH_SIZE must be positive", ErrInvalidConfig)
	}
	if c.Sync.MaxEpisodeBatches <= 0 {
		return fmt.Errorf("%w: SYNC_MAX_EPISODE_BATCHES must be positive", ErrInvalidConfig)
	}
	if c.Sync.UpsertChunkSize <= 0 {
		return fmt.Errorf("%w: SYNC_UPSERT_CHUNK_SIZE must be positive", ErrInvalidConfig)
	}
	if c.Sync.RecentMax <= 0 {
		return fmt.Errorf("%w: SYNC_RECENT_MAX must be positive", ErrInvalidConfig)
	}
	if c.PodcastIndex.MaxRetries < 0 {
		return fmt.Errorf("%w: PODCASTINDEX_MAX_RETRIES must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RequireDatabase fails when DATABASE_URL is unset.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is not set", ErrMissingConfig)
	}
	return nil
}

// RequirePodcastIndex fails when the directory credentials are unset.
func (c *Config) RequirePodcastIndex() error {
	if c.PodcastIndex.APIKey == "" || c.PodcastIndex.APISecret == "" {
		return fmt.Errorf("%w: PODCASTINDEX_API_KEY and PODCASTINDEX_API_SECRET are required", ErrMissingConfig)
	}
	return nil
}
