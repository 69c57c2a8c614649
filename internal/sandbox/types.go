package sandbox

import (
	"fmt"
	"time"
)

// InputMode controls how a request's input reaches the snippet
type InputMode string

const (
	// InputSafe copies input through the serialization boundary
	InputSafe InputMode = "safe"
	// InputRaw hands the host value to the snippet as is
	InputRaw InputMode = "raw"
)

// APIMode controls whether the capability surface can be mutated
type APIMode string

const (
	APIFrozen APIMode = "frozen"
	APIRaw    APIMode = "raw"
)

// Tier selects the execution tier
type Tier string

const (
	// TierInProcess runs in the shared host runtime, one request at a time
	TierInProcess Tier = "inprocess"
	// TierIsolated runs in a fresh runtime reachable only by message
	TierIsolated Tier = "isolated"
)

// Request is one execution request. It is not modified by the engine.
type Request struct {
	Code      string
	Input     any
	Timeout   time.Duration
	InputMode InputMode
	APIPick   []string
	APIMode   APIMode
	Tier      Tier
}

// Result is the uniform outcome of a request. Exactly one is produced per
// request.
type Result struct {
	OK     bool      `json:"ok"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
	Kind   ErrorKind `json:"kind,omitempty"`
	Logs   []string  `json:"logs"`
}

// Config configures an Engine
type Config struct {
	DefaultTimeout   time.Duration // used when a request has no timeout
	MaxTimeout       time.Duration // requests above this are clamped
	ReadyTimeout     time.Duration // isolated context startup budget
	MaxCallStackSize int
	MaxIsolated      int // concurrently live isolated contexts
	DefaultTier      Tier
	StrictMode       bool
	BreakerFailures  uint32
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:   5 * time.Second,
		MaxTimeout:       60 * time.Second,
		ReadyTimeout:     2 * time.Second,
		MaxCallStackSize: 1024,
		MaxIsolated:      64,
		DefaultTier:      TierInProcess,
		BreakerFailures:  5,
		BreakerCooldown:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = d.MaxTimeout
	}
	if c.DefaultTimeout > c.MaxTimeout {
		c.DefaultTimeout = c.MaxTimeout
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = d.ReadyTimeout
	}
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = d.MaxCallStackSize
	}
	if c.MaxIsolated <= 0 {
		c.MaxIsolated = d.MaxIsolated
	}
	if c.DefaultTier == "" {
		c.DefaultTier = d.DefaultTier
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	return c
}

// ParseInputMode parses an input mode; empty means safe
func ParseInputMode(s string) (InputMode, error) {
	switch InputMode(s) {
	case "", InputSafe:
		return InputSafe, nil
	case InputRaw:
		return InputRaw, nil
	}
	return "", fmt.Errorf("unknown input mode %q", s)
}

// ParseAPIMode parses an API mode; empty means frozen
func ParseAPIMode(s string) (APIMode, error) {
	switch APIMode(s) {
	case "", APIFrozen:
		return APIFrozen, nil
	case APIRaw:
		return APIRaw, nil
	}
	return "", fmt.Errorf("unknown api mode %q", s)
}

// ParseTier parses a tier; empty means the engine default
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case "":
		return "", nil
	case TierInProcess, TierIsolated:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}
