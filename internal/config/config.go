package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Values come from FIRESIDE_-prefixed
// environment variables with production defaults baked into the tags.
type Config struct {
	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	WebSocket WebSocketConfig `envPrefix:"WEBSOCKET_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	LogLevel  string          `env:"LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Host         string        `env:"HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	Path    string        `env:"PATH" envDefault:"./data/fireside.db"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	BufferSize   int           `env:"BUFFER_SIZE" envDefault:"100"`
}

type AuthConfig struct {
	// JWTSecret signs and verifies bearer credentials; it is shared with
	// the REST backend that issues them.
	JWTSecret string `env:"JWT_SECRET"`
}

type RateLimitConfig struct {
	Window    time.Duration `env:"WINDOW" envDefault:"60s"`
	MaxEvents int           `env:"MAX_EVENTS" envDefault:"100"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "FIRESIDE_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied and no
// environment lookups. Tests build on top of it.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:    "./data/fireside.db",
			Timeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Auth: AuthConfig{},
		RateLimit: RateLimitConfig{
			Window:    60 * time.Second,
			MaxEvents: 100,
		},
		LogLevel: "info",
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.RateLimit.MaxEvents <= 0 {
		return fmt.Errorf("rate limit max events must be positive")
	}
	return nil
}
