package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"escape-analytics-backend/internal/hours"
)

// Config represents the overall application configuration.
type Config struct {
	Server        ServerConfig     `yaml:"server"`
	Database      DatabaseConfig   `yaml:"database"`
	Webhook       WebhookConfig    `yaml:"webhook"`
	Retry         RetryConfig      `yaml:"retry"`
	Push          PushConfig       `yaml:"push"`
	WorkerPool    WorkerPoolConfig `yaml:"worker_pool"`
	BusinessHours hours.Config     `yaml:"business_hours"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// WebhookConfig tunes the scraper-facing webhook endpoint.
type WebhookConfig struct {
	// SettleDelayMS is how long change processing waits after a
	// scrape-completed notification, letting an eventually-consistent store
	// catch up with rows written by the external scraper.
	SettleDelayMS int           `yaml:"settle_delay_ms"`
	SettleDelay   time.Duration `yaml:"-"`
	MaxBatchSize  int           `yaml:"max_batch_size"`
}

// RetryConfig bounds the backoff loop used for store reads.
type RetryConfig struct {
	Attempts    int           `yaml:"attempts"`
	BaseDelayMS int           `yaml:"base_delay_ms"`
	BaseDelay   time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Webhook.SettleDelayMS <= 0 {
		cfg.Webhook.SettleDelayMS = 1000
	}
	cfg.Webhook.SettleDelay = time.Duration(cfg.Webhook.SettleDelayMS) * time.Millisecond
	if cfg.Webhook.MaxBatchSize <= 0 {
		cfg.Webhook.MaxBatchSize = 1000
	}

	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.BaseDelayMS <= 0 {
		cfg.Retry.BaseDelayMS = 100
	}
	cfg.Retry.BaseDelay = time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	// Business-hours keys are matched by normalized name; re-key the table so
	// config authors can write the display names.
	if len(cfg.BusinessHours) > 0 {
		normalized := make(hours.Config, len(cfg.BusinessHours))
		for name, sched := range cfg.BusinessHours {
			normalized[hours.Normalize(name)] = sched
		}
		cfg.BusinessHours = normalized
	}

	return &cfg, nil
}
