package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Store drivers selectable via STORE_DRIVER.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	StoreDriver        string `env:"STORE_DRIVER,default=postgres"`
	DatabaseDSN        string `env:"DATABASE_DSN"`
	RedisURL           string `env:"REDIS_URL"`
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	DeliveryTimeoutSec int    `env:"DELIVERY_TIMEOUT_SEC,default=30"`
	PollIntervalSec    int    `env:"POLL_INTERVAL_SEC,default=5"`
	BatchSize          int    `env:"BATCH_SIZE,default=100"`
	WorkerConcurrency  int    `env:"WORKER_CONCURRENCY,default=16"`
	RateLimitPerSec    int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	ClaimLeaseSec      int    `env:"CLAIM_LEASE_SEC,default=45"`
	UserAgent          string `env:"USER_AGENT,default=postback-engine/1.0"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StorePostgres:
		if strings.TrimSpace(cfg.DatabaseDSN) == "" {
			return nil, fmt.Errorf("DATABASE_DSN is required with the postgres store")
		}
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return nil, fmt.Errorf("REDIS_URL is required with the postgres store")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return &cfg, nil
}

func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSec) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) ClaimLease() time.Duration {
	return time.Duration(c.ClaimLeaseSec) * time.Second
}
