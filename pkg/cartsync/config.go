package cartsync

import (
	"fmt"
	"net/url"
	"time"
)

// Config configures a storefront session client.
type Config struct {
	BaseURL           string        `env:"STOREFRONT_URL" envDefault:"http://localhost:8080"`
	IdleAfter         time.Duration `env:"CART_IDLE_AFTER" envDefault:"20m"`
	HeartbeatInterval time.Duration `env:"CART_HEARTBEAT_INTERVAL" envDefault:"60s"`
	PollInterval      time.Duration `env:"CART_POLL_INTERVAL" envDefault:"5s"`
	RequestTimeout    time.Duration `env:"CART_REQUEST_TIMEOUT" envDefault:"10s"`
	// ReadRetries applies to GETs only. Mutations are never retried.
	ReadRetries     int           `env:"CART_READ_RETRIES" envDefault:"2"`
	BreakerCooldown time.Duration `env:"CART_BREAKER_COOLDOWN" envDefault:"15s"`
	RelayKey        string        `env:"CART_RELAY_KEY" envDefault:"inventory:broadcast"`
	Currency        string        `env:"CART_CURRENCY" envDefault:"usd"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:8080",
		IdleAfter:         20 * time.Minute,
		HeartbeatInterval: 60 * time.Second,
		PollInterval:      5 * time.Second,
		RequestTimeout:    10 * time.Second,
		ReadRetries:       2,
		BreakerCooldown:   15 * time.Second,
		RelayKey:          "inventory:broadcast",
		Currency:          "usd",
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("STOREFRONT_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.IdleAfter <= 0 {
		return fmt.Errorf("CART_IDLE_AFTER must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("CART_HEARTBEAT_INTERVAL must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("CART_POLL_INTERVAL must be positive")
	}
	if c.ReadRetries < 0 {
		return fmt.Errorf("CART_READ_RETRIES must not be negative")
	}
	if c.RelayKey == "" {
		return fmt.Errorf("CART_RELAY_KEY is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CART_CURRENCY must be a three-letter code, got %q", c.Currency)
	}
	return nil
}
