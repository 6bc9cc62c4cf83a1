package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/gothglitter/storefront/pkg/config"
	"github.com/gothglitter/storefront/pkg/database"
	"github.com/gothglitter/storefront/pkg/tracing"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	SessionSecure  bool     `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	PprofCIDRs     []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`

	// AdminToken guards the stock override route. Empty disables it.
	AdminToken string `env:"STOREFRONT_ADMIN_TOKEN"`

	// Holds
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"20m"`
	SweepInterval time.Duration `env:"CART_SWEEP_INTERVAL" envDefault:"60s"`

	// Payments. Without a key the mock provider is used.
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`

	Redis    database.RedisConfig
	Postgres database.PostgresConfig
	Tracing  tracing.Config

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaAsync   bool     `env:"KAFKA_ASYNC" envDefault:"true"`
}

// Load reads configuration from the environment, after merging an optional
// .env file.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Tracing.ServiceName = "storefront"
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive, got %s", c.CartTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("CART_SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.Environment == "production" && c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
	}
	return nil
}
