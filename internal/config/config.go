package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every tuning knob for the server. Values come from the
// environment with sane defaults; nothing here is required for a local run.
type Config struct {
	Host string `env:"DICEBOWL_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"DICEBOWL_PORT" envDefault:"8080"`

	HTTPReadTimeout  time.Duration `env:"DICEBOWL_HTTP_READ_TIMEOUT" envDefault:"30s"`
	HTTPWriteTimeout time.Duration `env:"DICEBOWL_HTTP_WRITE_TIMEOUT" envDefault:"30s"`

	// RollDuration is the shake window: how long a room stays ROLLING
	// before the server settles it back to CLOSED.
	RollDuration time.Duration `env:"DICEBOWL_ROLL_DURATION" envDefault:"2s"`

	WSWriteTimeout time.Duration `env:"DICEBOWL_WS_WRITE_TIMEOUT" envDefault:"5s"`
	WSReadTimeout  time.Duration `env:"DICEBOWL_WS_READ_TIMEOUT" envDefault:"60s"`
	WSPingInterval time.Duration `env:"DICEBOWL_WS_PING_INTERVAL" envDefault:"30s"`
	WSBufferSize   int           `env:"DICEBOWL_WS_BUFFER_SIZE" envDefault:"100"`

	// StaticDir holds the built viewer/admin client; served as-is.
	StaticDir string `env:"DICEBOWL_STATIC_DIR" envDefault:"./dist"`

	LogLevel string `env:"DICEBOWL_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment over defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults without touching the environment.
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		HTTPReadTimeout:  30 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,
		RollDuration:     2 * time.Second,
		WSWriteTimeout:   5 * time.Second,
		WSReadTimeout:    60 * time.Second,
		WSPingInterval:   30 * time.Second,
		WSBufferSize:     100,
		StaticDir:        "./dist",
		LogLevel:         "info",
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.HTTPReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTPWriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.RollDuration <= 0 {
		return fmt.Errorf("roll duration must be positive")
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WSReadTimeout <= 0 {
		return fmt.Errorf("websocket read timeout must be positive")
	}
	if c.WSPingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WSPingInterval >= c.WSReadTimeout {
		return fmt.Errorf("websocket ping interval must be shorter than the read timeout")
	}
	if c.WSBufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
