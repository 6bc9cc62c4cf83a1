package config

import (
	"fmt"

	"github.com/gothglitter/storefront/pkg/cartsync"
	pkgconfig "github.com/gothglitter/storefront/pkg/config"
	"github.com/gothglitter/storefront/pkg/database"
)

// Config holds all configuration for the shopper session.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`

	Client cartsync.Config

	// RelayEnabled shares availability events with other sessions through Redis.
	RelayEnabled bool `env:"SHOPPER_RELAY_ENABLED" envDefault:"false"`
	Redis        database.RedisConfig
}

// Load reads configuration from the environment, after merging an optional
// .env file.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load shopper config: %w", err)
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
