package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/sandbox"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SandboxConfig holds execution limits.
type SandboxConfig struct {
	DefaultTimeout time.Duration `envconfig:"SANDBOX_DEFAULT_TIMEOUT" default:"5s"`
	MaxTimeout     time.Duration `envconfig:"SANDBOX_MAX_TIMEOUT" default:"60s"`
	ReadyTimeout   time.Duration `envconfig:"SANDBOX_READY_TIMEOUT" default:"2s"`
	MaxCallStack   int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	MaxIsolated    int           `envconfig:"SANDBOX_MAX_ISOLATED" default:"64"`
	DefaultTier    string        `envconfig:"SANDBOX_DEFAULT_TIER" default:"inprocess"`
	StrictMode     bool          `envconfig:"SANDBOX_STRICT" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// BreakerConfig holds the isolated context circuit breaker settings.
type BreakerConfig struct {
	Failures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	Cooldown time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := sandbox.ParseTier(cfg.Sandbox.DefaultTier); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Sandbox: SandboxConfig{
			DefaultTimeout: 5 * time.Second,
			MaxTimeout:     60 * time.Second,
			ReadyTimeout:   2 * time.Second,
			MaxCallStack:   1024,
			MaxIsolated:    64,
			DefaultTier:    string(sandbox.TierInProcess),
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Cooldown: 30 * time.Second,
		},
	}
}

// Engine maps the configuration onto engine settings.
func (c *Config) Engine() sandbox.Config {
	return sandbox.Config{
		DefaultTimeout:   c.Sandbox.DefaultTimeout,
		MaxTimeout:       c.Sandbox.MaxTimeout,
		ReadyTimeout:     c.Sandbox.ReadyTimeout,
		MaxCallStackSize: c.Sandbox.MaxCallStack,
		MaxIsolated:      c.Sandbox.MaxIsolated,
		DefaultTier:      sandbox.Tier(c.Sandbox.DefaultTier),
		StrictMode:       c.Sandbox.StrictMode,
		BreakerFailures:  c.Breaker.Failures,
		BreakerCooldown:  c.Breaker.Cooldown,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
