package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits for host-facing request fields
const (
	MaxCodeLength = 256 * 1024
	MaxNameLength = 128
	MaxPickCount  = 256
	MaxInputDepth = 64
)

// NamePattern matches a JavaScript identifier usable as a property name
// without quoting.
var NamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// String validates a string field with length and content checks
func String(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// Name validates a capability name
func Name(name, fieldName string) error {
	if err := String(name, fieldName, 1, MaxNameLength, true); err != nil {
		return err
	}
	if !NamePattern.MatchString(name) {
		return fmt.Errorf("%s %q is not a valid identifier", fieldName, name)
	}
	return nil
}

// Names validates a list of capability names
func Names(names []string, fieldName string) error {
	if len(names) > MaxPickCount {
		return fmt.Errorf("%s must not exceed %d entries", fieldName, MaxPickCount)
	}
	for _, name := range names {
		if err := Name(name, fieldName); err != nil {
			return err
		}
	}
	return nil
}

// Code validates snippet source text. Empty code is a valid snippet.
func Code(code string) error {
	if len(code) > MaxCodeLength {
		return fmt.Errorf("code size %d bytes exceeds maximum %d bytes", len(code), MaxCodeLength)
	}
	if !utf8.ValidString(code) {
		return fmt.Errorf("code is not valid UTF-8")
	}
	return nil
}

// Depth checks that decoded JSON nests no deeper than maxDepth
func Depth(data any, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data any, currentDepth, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("nesting depth exceeds maximum %d", maxDepth)
	}

	switch v := data.(type) {
	case map[string]any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}
