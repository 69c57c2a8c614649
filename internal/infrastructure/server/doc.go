// Package server assembles the scriptbox process: capability registry,
// engine, gin router with its middleware, and the HTTP listener.
package server
