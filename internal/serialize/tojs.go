package serialize

import (
	"sort"

	"github.com/dop251/goja"
)

// ToJS materialises a serialized tree as native JS values owned by vm.
// Mappings become plain objects and sequences become real arrays, so the
// script never holds a reference into host memory. Containers nested deeper
// than MaxDepth become TruncatedMarker.
func ToJS(vm *goja.Runtime, tree any) goja.Value {
	return toJS(vm, tree, 0)
}

func toJS(vm *goja.Runtime, tree any, depth int) goja.Value {
	switch v := tree.(type) {
	case nil:
		return goja.Null()
	case map[string]any:
		if depth >= MaxDepth {
			return vm.ToValue(TruncatedMarker)
		}
		obj := vm.NewObject()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = obj.Set(k, toJS(vm, v[k], depth+1))
		}
		return obj
	case []any:
		if depth >= MaxDepth {
			return vm.ToValue(TruncatedMarker)
		}
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = toJS(vm, item, depth+1)
		}
		return vm.NewArray(items...)
	default:
		return vm.ToValue(v)
	}
}
