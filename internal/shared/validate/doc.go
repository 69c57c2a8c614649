// Package validate checks untrusted request fields before they reach the
// engine: snippet size, capability names and input nesting depth.
package validate
