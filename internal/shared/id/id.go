// Package id provides centralized ID generation for scriptbox.
//
// Every ID is a ULID with a short type prefix:
//   - Lexicographic sortability: request logs line up by creation time
//   - Prefixed types: req_*, unit_*, iso_* are readable in logs
//   - Type safety: separate types prevent passing a token where a request ID is expected
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// RequestID identifies one execution request
type RequestID string

// UnitToken identifies a compiled unit registered in the shared host context
type UnitToken string

// ContextID identifies an isolated execution context
type ContextID string

// ============================================================================
// ID Prefixes
// ============================================================================

const (
	RequestPrefix = "req"
	UnitPrefix    = "unit"
	ContextPrefix = "iso"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewUnitToken generates a new unit registration token
func NewUnitToken() UnitToken {
	return UnitToken(Default().GenerateWithPrefix(UnitPrefix))
}

// NewContextID generates a new isolated context ID
func NewContextID() ContextID {
	return ContextID(Default().GenerateWithPrefix(ContextPrefix))
}

func (id RequestID) String() string { return string(id) }
func (id UnitToken) String() string { return string(id) }
func (id ContextID) String() string { return string(id) }

// ============================================================================
// Validation
// ============================================================================

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// IsValidPrefixed checks a prefix_ULID string against the expected prefix
func IsValidPrefixed(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return false
	}
	return IsValid(rest)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
