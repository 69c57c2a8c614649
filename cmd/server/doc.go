// Package main is the entry point for the scriptbox server.
//
// scriptbox runs short JavaScript snippets against a registry of host
// capabilities, either in a shared in-process runtime or in a fresh isolated
// runtime per request, and returns {ok, result|error, logs} for every request.
//
// Configuration:
//   - Environment variables (see package config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
