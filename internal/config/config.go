// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment configuration for the vecgrid CLI.
// Command-line flags override these values.
type Config struct {
	// DB is the SQLite database holding the write journal and properties.
	DB string `env:"VECGRID_DB" envDefault:"vecgrid.db"`

	LogLevel  string `env:"VECGRID_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"VECGRID_LOG_FORMAT" envDefault:"text"`

	// MaxCascade bounds chains of callback-triggered writes.
	MaxCascade int `env:"VECGRID_MAX_CASCADE" envDefault:"32"`

	// RedisAddr enables the Redis stream journal when set.
	RedisAddr   string `env:"VECGRID_REDIS_ADDR"`
	RedisStream string `env:"VECGRID_REDIS_STREAM" envDefault:"vecgrid:journal"`

	// Refresh is the periodic resync interval; zero disables it.
	Refresh time.Duration `env:"VECGRID_REFRESH" envDefault:"0s"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.MaxCascade < 0 {
		return Config{}, fmt.Errorf("VECGRID_MAX_CASCADE must not be negative, got %d", cfg.MaxCascade)
	}
	if cfg.Refresh < 0 {
		return Config{}, fmt.Errorf("VECGRID_REFRESH must not be negative, got %s", cfg.Refresh)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
