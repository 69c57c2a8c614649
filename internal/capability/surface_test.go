package capability

import (
	"context"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncScope settles async capabilities immediately on the calling goroutine.
type syncScope struct {
	vm *goja.Runtime
}

func (s *syncScope) Context() context.Context { return context.Background() }
func (s *syncScope) Runtime() *goja.Runtime   { return s.vm }
func (s *syncScope) Async(fn func(ctx context.Context) (any, error)) goja.Value {
	p, resolve, reject := s.vm.NewPromise()
	v, err := fn(context.Background())
	if err != nil {
		_ = reject(s.vm.NewGoError(err))
	} else {
		_ = resolve(s.vm.ToValue(v))
	}
	return s.vm.ToValue(p)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", map[string]any{"value": 1, "inc": func(n int) int { return n + 1 }}))
	require.NoError(t, reg.Register("b", "bee"))
	require.NoError(t, reg.Register("c", func() string { return "see" }))
	require.NoError(t, reg.Register("d", []any{1, 2, 3}))
	return reg
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("x", 1))
	assert.Error(t, reg.Register("x", 2), "duplicate names are rejected")
	assert.Error(t, reg.Register("", 1))
	assert.Error(t, reg.Register("not-an-identifier", 1))
	assert.Error(t, reg.Register("nil", nil))

	reg.Unregister("x")
	assert.Empty(t, reg.Names())
}

func TestPickKeys(t *testing.T) {
	registry := map[string]any{"a": 1, "b": 2, "c": 3, "d": 4}

	picked := PickKeys(registry, []string{"a", "c", "missing"})
	assert.Equal(t, map[string]any{"a": 1, "c": 3}, picked)

	picked["a"] = 99
	assert.Equal(t, 1, registry["a"], "picked view must be a new mapping")

	assert.Equal(t, registry, PickKeys(registry, nil))
	assert.Equal(t, registry, PickKeys(registry, []string{}))
}

func TestBuildPickHidesOtherNames(t *testing.T) {
	vm := goja.New()
	surface, err := Build(&syncScope{vm: vm}, newTestRegistry(t), Options{Pick: []string{"a", "c"}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "c"}, surface.Keys())
	require.NoError(t, vm.Set("api", surface))

	v, err := vm.RunString(`typeof api.b === "undefined" && typeof api.d === "undefined" && api.c() === "see" && api.a.inc(1) === 2`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestBuildFrozenIgnoresMutation(t *testing.T) {
	vm := goja.New()
	reg := newTestRegistry(t)

	surface, err := Build(&syncScope{vm: vm}, reg, Options{Frozen: true})
	require.NoError(t, err)
	require.NoError(t, vm.Set("api", surface))

	_, err = vm.RunString(`
		api.b = "changed";
		api.a.value = 42;
		api.a.inc = null;
		api.d.push(4);
	`)
	require.Error(t, err, "pushing onto a frozen array throws")

	v, err := vm.RunString(`api.b === "bee" && api.a.value === 1 && typeof api.a.inc === "function" && api.d.length === 3`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())

	frozen, err := vm.RunString(`Object.isFrozen(api) && Object.isFrozen(api.a) && Object.isFrozen(api.d)`)
	require.NoError(t, err)
	assert.True(t, frozen.ToBoolean())
}

func TestBuildRawMutationStaysLocal(t *testing.T) {
	reg := newTestRegistry(t)

	vm := goja.New()
	surface, err := Build(&syncScope{vm: vm}, reg, Options{})
	require.NoError(t, err)
	require.NoError(t, vm.Set("api", surface))
	_, err = vm.RunString(`api.a.value = 42; api.extra = true;`)
	require.NoError(t, err)

	next, err := Build(&syncScope{vm: vm}, reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.Get("a").ToObject(vm).Get("value").Export())
	assert.Nil(t, next.Get("extra"))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, reg.Names())
}

func TestBuildBinder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("later", Binder(func(s Scope) any {
		return map[string]any{
			"value": func() goja.Value {
				return s.Async(func(ctx context.Context) (any, error) { return "done", nil })
			},
		}
	})))

	vm := goja.New()
	surface, err := Build(&syncScope{vm: vm}, reg, Options{Frozen: true})
	require.NoError(t, err)
	require.NoError(t, vm.Set("api", surface))

	v, err := vm.RunString(`var out; api.later.value().then(function (v) { out = v; }); out`)
	require.NoError(t, err)
	_ = v
	assert.Equal(t, "done", vm.Get("out").Export())
}

func TestDeepFreezeToleratesCyclesAndPrimitives(t *testing.T) {
	vm := goja.New()

	assert.NoError(t, DeepFreeze(vm, vm.ToValue(5)))
	assert.NoError(t, DeepFreeze(vm, goja.Undefined()))

	v, err := vm.RunString(`var o = {inner: {}}; o.inner.back = o; o.fn = function () {}; Object.freeze(o.inner); o`)
	require.NoError(t, err)
	require.NoError(t, DeepFreeze(vm, v))

	frozen, err := vm.RunString(`Object.isFrozen(o) && Object.isFrozen(o.inner) && Object.isFrozen(o.fn)`)
	require.NoError(t, err)
	assert.True(t, frozen.ToBoolean())
}

func TestDeepFreezeDeepChains(t *testing.T) {
	vm := goja.New()
	v, err := vm.RunString(`var root = {}; var cur = root;
		for (var i = 0; i < 200000; i++) { cur.next = {}; cur = cur.next; }
		root`)
	require.NoError(t, err)

	require.NoError(t, DeepFreeze(vm, v))
	frozen, err := vm.RunString(`Object.isFrozen(root) && Object.isFrozen(cur)`)
	require.NoError(t, err)
	assert.True(t, frozen.ToBoolean())
}
