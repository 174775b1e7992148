package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "./data/fireside.db", cfg.Database.Path)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.MaxEvents)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing JWT secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"port zero", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"read timeout under ping interval", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval / 2 }},
		{"zero write timeout", func(c *Config) { c.WebSocket.WriteTimeout = 0 }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"zero rate limit window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero rate limit max events", func(c *Config) { c.RateLimit.MaxEvents = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("FIRESIDE_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("FIRESIDE_HTTP_PORT", "9090")
	t.Setenv("FIRESIDE_RATE_LIMIT_MAX_EVENTS", "250")
	t.Setenv("FIRESIDE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 250, cfg.RateLimit.MaxEvents)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window, "unset fields keep defaults")
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("FIRESIDE_AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
