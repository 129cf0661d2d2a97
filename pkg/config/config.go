// Package config loads catalog feed settings from environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/catalog-feed/pkg/breaker"
	"github.com/Sternrassler/catalog-feed/pkg/client"
	"github.com/Sternrassler/catalog-feed/pkg/listing"
	"github.com/Sternrassler/catalog-feed/pkg/logging"
	"github.com/Sternrassler/catalog-feed/pkg/viewport"
	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration.
type Config struct {
	// Catalog list endpoint
	BaseURL   string        `env:"CATALOG_BASE_URL"`
	UserAgent string        `env:"CATALOG_USER_AGENT" envDefault:"catalog-feed/0.1.0"`
	Timeout   time.Duration `env:"CATALOG_TIMEOUT"    envDefault:"15s"`

	// Circuit breaker in front of the catalog
	BreakerEnabled     bool          `env:"CATALOG_BREAKER_ENABLED"      envDefault:"true"`
	BreakerFailures    uint32        `env:"CATALOG_BREAKER_FAILURES"     envDefault:"5"`
	BreakerOpenTimeout time.Duration `env:"CATALOG_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	// Session cache. Without REDIS_ADDR entries stay in process memory.
	RedisAddr  string        `env:"REDIS_ADDR"`
	RedisDB    int           `env:"REDIS_DB"    envDefault:"0"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// List session behavior
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"350ms"`
	ScrollMargin   float64       `env:"SCROLL_MARGIN"   envDefault:"200"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY"   envDefault:"false"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("CATALOG_BASE_URL must be an absolute URL (got %q)", c.BaseURL)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive (got %s)", c.Timeout)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative (got %s)", c.SessionTTL)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("DEBOUNCE_WINDOW must not be negative (got %s)", c.DebounceWindow)
	}
	if c.ScrollMargin < 0 {
		return fmt.Errorf("SCROLL_MARGIN must not be negative (got %v)", c.ScrollMargin)
	}
	return nil
}

// Client returns the catalog client configuration.
func (c Config) Client() client.Config {
	cfg := client.DefaultConfig(c.BaseURL, c.UserAgent)
	cfg.Timeout = c.Timeout
	cfg.Breaker = breaker.Config{
		Enabled:             c.BreakerEnabled,
		ConsecutiveFailures: c.BreakerFailures,
		OpenTimeout:         c.BreakerOpenTimeout,
		HalfOpenRequests:    breaker.DefaultHalfOpenRequests,
	}
	return cfg
}

// Session returns the list session configuration.
func (c Config) Session() listing.Config {
	cfg := listing.DefaultConfig()
	cfg.DebounceWindow = c.DebounceWindow
	return cfg
}

// ScrollTrigger builds a scroll trigger with the configured lookahead.
func (c Config) ScrollTrigger() *viewport.ScrollTrigger {
	return viewport.NewScrollTrigger(c.ScrollMargin, 0)
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
