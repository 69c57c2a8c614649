// Package sandbox runs untrusted JavaScript snippets and reports every
// outcome as a Result.
//
// Snippets run in one of two tiers. The in-process tier shares a single
// long-lived runtime and serializes requests through a one-slot lane; console
// output is redirected to a per-request capture while the lane is held. The
// isolated tier spawns a fresh runtime per request that exchanges exactly one
// message in each direction with the host and is torn down afterwards.
//
// Code is compiled before a tier is chosen, so a snippet that fails to parse
// never reaches a runtime. Values crossing the boundary are copied through
// package serialize.
package sandbox
