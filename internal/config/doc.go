// Package config provides 12-factor configuration for the scriptbox server.
//
// Configuration is loaded from environment variables with defaults.
//
// Configuration Sections:
//   - Server: HTTP listen address
//   - Sandbox: timeouts, call stack depth, isolated context cap, default tier
//   - Logging: log level and output format
//   - RateLimit: per-client rate limiting
//   - Breaker: isolated context circuit breaker
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	engine, err := sandbox.New(cfg.Engine(), registry)
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - SANDBOX_DEFAULT_TIMEOUT, SANDBOX_MAX_TIMEOUT, SANDBOX_READY_TIMEOUT
//   - SANDBOX_MAX_CALL_STACK, SANDBOX_MAX_ISOLATED, SANDBOX_DEFAULT_TIER, SANDBOX_STRICT
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BREAKER_FAILURES, BREAKER_COOLDOWN
package config
