// Package http exposes the snippet engine over a small REST API on gin.
//
// Endpoints:
//   - POST /v1/execute: run a snippet, body {code, input, timeoutMs, inputMode, apiPick, apiMode, tier}
//   - GET /v1/capabilities: registered capability names
//   - GET / and /health: status and execution statistics
//   - GET /metrics: Prometheus exposition
//
// A settled execution is always a 200 whose body is {ok, result|error, kind, logs}.
// Malformed JSON and unknown enum values are a 400.
package http
