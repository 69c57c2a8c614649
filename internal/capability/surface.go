package capability

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
)

// Options controls how a surface is derived from the registry.
type Options struct {
	Pick   []string // allow-list of top-level names; empty means all
	Frozen bool     // deep-freeze the surface before handing it out
}

// Build derives the per-request capability surface. The result is made of
// fresh JS objects, so nothing a snippet does to it reaches the registry.
func Build(scope Scope, reg *Registry, opts Options) (*goja.Object, error) {
	vm := scope.Runtime()

	view := PickKeys(reg.Snapshot(), opts.Pick)
	surface := materializeGroup(vm, scope, view)

	if opts.Frozen {
		if err := DeepFreeze(vm, surface); err != nil {
			return nil, fmt.Errorf("failed to freeze capability surface: %w", err)
		}
	}
	return surface, nil
}

func materializeGroup(vm *goja.Runtime, scope Scope, group map[string]any) *goja.Object {
	obj := vm.NewObject()

	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_ = obj.Set(name, materialize(vm, scope, group[name]))
	}
	return obj
}

func materialize(vm *goja.Runtime, scope Scope, value any) goja.Value {
	switch v := value.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return v
	case Binder:
		return materialize(vm, scope, v(scope))
	case func(Scope) any:
		return materialize(vm, scope, v(scope))
	case map[string]any:
		return materializeGroup(vm, scope, v)
	}

	if reflect.TypeOf(value).Kind() == reflect.Func {
		return vm.ToValue(value)
	}

	// Plain data is copied so the snippet never holds a host reference.
	return serialize.ToJS(vm, serialize.Value(value))
}

// DeepFreeze freezes value and everything reachable through its
// enumerable own properties. Primitives are ignored, functions and already
// frozen objects are accepted, and cycles terminate through the visited set.
func DeepFreeze(vm *goja.Runtime, value goja.Value) error {
	object := vm.Get("Object").ToObject(vm)
	freeze, ok := goja.AssertFunction(object.Get("freeze"))
	if !ok {
		return fmt.Errorf("Object.freeze is not callable")
	}

	visited := make(map[*goja.Object]struct{})
	pending := []goja.Value{value}

	for len(pending) > 0 {
		v := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		obj, ok := v.(*goja.Object)
		if !ok {
			continue
		}
		if _, seen := visited[obj]; seen {
			continue
		}
		visited[obj] = struct{}{}

		if _, err := freeze(goja.Undefined(), obj); err != nil {
			return err
		}
		for _, key := range obj.Keys() {
			pending = append(pending, obj.Get(key))
		}
	}
	return nil
}
