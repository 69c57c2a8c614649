package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/shared/validate"
)

// Scope is the per-execution environment a capability binds to.
type Scope interface {
	// Context is cancelled when the execution settles.
	Context() context.Context
	// Runtime is the runtime the snippet executes in.
	Runtime() *goja.Runtime
	// Async runs fn off the script goroutine and returns a promise that is
	// settled with its outcome back on the script goroutine.
	Async(fn func(ctx context.Context) (any, error)) goja.Value
}

// Binder produces a capability value for one execution scope.
type Binder func(scope Scope) any

// Registry holds the host's exposed capabilities grouped by name. It is owned
// by the composing application and handed to the engine at construction.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Register adds a named capability. Values may be Go functions, nested
// map[string]any groups, plain data or a Binder.
func (r *Registry) Register(name string, value any) error {
	if err := validate.Name(name, "capability name"); err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("capability %q has no value", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.entries[name] = value
	return nil
}

// Unregister removes a capability
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Names returns registered capability names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a shallow copy of the top-level mapping.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.entries))
	for name, value := range r.entries {
		out[name] = value
	}
	return out
}

// PickKeys returns a new mapping holding only the listed names that exist in
// registry. With no names the registry is returned unchanged.
func PickKeys(registry map[string]any, names []string) map[string]any {
	if len(names) == 0 {
		return registry
	}

	picked := make(map[string]any, len(names))
	for _, name := range names {
		if value, ok := registry[name]; ok {
			picked[name] = value
		}
	}
	return picked
}
