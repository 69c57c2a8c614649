package serialize

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJS(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	require.NoError(t, err)
	return v
}

func TestPrimitivesPassThrough(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"float", 1.5, 1.5},
		{"string", "hi", "hi"},
		{"uint8", uint8(7), int64(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestLargeIntegersBecomeText(t *testing.T) {
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	assert.Equal(t, "123456789012345678901234567890", Value(huge))
	assert.Equal(t, "9007199254740993", Value(int64(9007199254740993)))
	assert.Equal(t, "18446744073709551615", Value(uint64(math.MaxUint64)))
	assert.Equal(t, int64(9007199254740991), Value(int64(9007199254740991)))
}

func TestTimestampsBecomeCanonicalText(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-01-02T02:04:05.006Z", Value(ts))

	vm := goja.New()
	v := runJS(t, vm, "new Date(Date.UTC(2024, 0, 2, 3, 4, 5, 6))")
	assert.Equal(t, "2024-01-02T03:04:05.006Z", New(vm).Value(v))
}

func TestNonFiniteNumbersBecomeNull(t *testing.T) {
	assert.Nil(t, Value(math.NaN()))
	assert.Nil(t, Value(math.Inf(1)))
	assert.Equal(t, []any{nil, 1.5}, Value([]float64{math.Inf(-1), 1.5}))

	vm := goja.New()
	v := runJS(t, vm, `({nan: 0/0, inf: 1/0, list: [-1/0]})`)
	assert.Equal(t, map[string]any{"nan": nil, "inf": nil, "list": []any{nil}}, New(vm).Value(v))
}

func TestDroppedValues(t *testing.T) {
	vm := goja.New()

	arr := runJS(t, vm, `[1, function () {}, undefined, "s", Symbol("x")]`)
	assert.Equal(t, []any{int64(1), "s"}, New(vm).Value(arr))

	obj := runJS(t, vm, `({a: 1, f: function () {}, u: undefined, n: null})`)
	assert.Equal(t, map[string]any{"a": int64(1), "n": nil}, New(vm).Value(obj))

	assert.Nil(t, New(vm).Value(goja.Undefined()))

	goMap := map[string]any{"keep": 1, "fn": func() {}, "ch": make(chan int)}
	assert.Equal(t, map[string]any{"keep": int64(1)}, Value(goMap))
}

func TestMapAndSet(t *testing.T) {
	vm := goja.New()

	m := runJS(t, vm, `new Map([["a", 1], [2, "b"]])`)
	assert.Equal(t, []any{
		[]any{"a", int64(1)},
		[]any{int64(2), "b"},
	}, New(vm).Value(m))

	s := runJS(t, vm, `new Set([1, 2, 2, 3])`)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, New(vm).Value(s))

	goMap := map[int]string{2: "b", 1: "a"}
	assert.Equal(t, []any{
		[]any{int64(1), "a"},
		[]any{int64(2), "b"},
	}, Value(goMap))
}

func TestSelfReferenceBecomesMarker(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `var a = {x: 1}; a.self = a; a`)

	assert.Equal(t, map[string]any{
		"x":    int64(1),
		"self": CircularMarker,
	}, New(vm).Value(v))
}

func TestCycleThroughArrayAndMap(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `
		var root = {items: []};
		root.items.push(root);
		var m = new Map();
		m.set("back", m);
		root.map = m;
		root
	`)

	out := New(vm).Value(v).(map[string]any)
	assert.Equal(t, []any{CircularMarker}, out["items"])
	assert.Equal(t, []any{[]any{"back", CircularMarker}}, out["map"])
}

func TestSharedSiblingIsNotCircular(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `var o = {v: 1}; ({a: o, b: o})`)

	assert.Equal(t, map[string]any{
		"a": map[string]any{"v": int64(1)},
		"b": map[string]any{"v": int64(1)},
	}, New(vm).Value(v))
}

type node struct {
	Name   string `json:"name"`
	Next   *node  `json:"next"`
	Hidden string `json:"-"`
	secret string
}

func TestGoCycles(t *testing.T) {
	n := &node{Name: "a", Hidden: "h", secret: "s"}
	n.Next = n
	assert.Equal(t, map[string]any{"name": "a", "next": CircularMarker}, Value(n))

	m := map[string]any{"k": 1}
	m["self"] = m
	assert.Equal(t, map[string]any{"k": int64(1), "self": CircularMarker}, Value(m))

	s := make([]any, 1)
	s[0] = s
	assert.Equal(t, []any{CircularMarker}, Value(s))
}

func TestDeepStructuresTerminate(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `
		var head = {};
		var cur = head;
		for (var i = 0; i < 5000; i++) { cur.next = {i: i}; cur = cur.next; }
		cur.next = head;
		head
	`)

	var out any
	require.NotPanics(t, func() { out = New(vm).Value(v) })
	assert.IsType(t, map[string]any{}, out)
}

func TestDeepAcyclicStructuresAreTruncated(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `
		var a = {};
		for (var i = 0; i < 1000000; i++) { a = {a: a}; }
		a
	`)

	out := New(vm).Value(v)
	depth := 0
	for {
		m, ok := out.(map[string]any)
		if !ok {
			break
		}
		out = m["a"]
		depth++
	}
	assert.Equal(t, MaxDepth, depth)
	assert.Equal(t, TruncatedMarker, out)

	nested := runJS(t, vm, `
		var l = [];
		for (var i = 0; i < 100000; i++) { l = [l]; }
		l
	`)
	require.NotPanics(t, func() { New(vm).Value(nested) })
}

func TestDeepGoValuesAreTruncated(t *testing.T) {
	var tree any = "leaf"
	for i := 0; i < 100000; i++ {
		tree = []any{tree}
	}

	out := Value(tree)
	depth := 0
	for {
		seq, ok := out.([]any)
		if !ok {
			break
		}
		out = seq[0]
		depth++
	}
	assert.Equal(t, MaxDepth, depth)
	assert.Equal(t, TruncatedMarker, out)

	vm := goja.New()
	js := ToJS(vm, tree)
	require.NoError(t, vm.Set("tree", js))
	got := runJS(t, vm, `var d = 0, c = tree; while (Array.isArray(c)) { c = c[0]; d++; } [d, c]`)
	assert.Equal(t, []any{int64(MaxDepth), TruncatedMarker}, got.Export())
}

func TestSparseArraysVisitPresentElements(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `
		var a = [];
		a.length = 4294967295;
		a[3] = "x";
		a[4000000000] = "y";
		a.extra = "ignored";
		a
	`)

	var out any
	require.NotPanics(t, func() { out = New(vm).Value(v) })
	assert.Equal(t, []any{"x", "y"}, out)

	holes := runJS(t, vm, `[1, , 3]`)
	assert.Equal(t, []any{int64(1), int64(3)}, New(vm).Value(holes))
}

func TestClosedDoneAbortsConversion(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `[1, {a: [2]}]`)

	done := make(chan struct{})
	close(done)
	assert.Nil(t, New(vm).WithDone(done).Value(v))

	open := make(chan struct{})
	assert.Equal(t, []any{int64(1), map[string]any{"a": []any{int64(2)}}}, New(vm).WithDone(open).Value(v))
}

func TestIdempotentForAcyclic(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `({
		n: 1, f: 2.5, s: "x", b: false, z: null,
		list: [1, [2, 3], {k: "v"}],
		when: new Date(0),
		set: new Set(["a"])
	})`)

	once := New(vm).Value(v)
	twice := Value(once)
	assert.Equal(t, once, twice)
}

func TestFallbacks(t *testing.T) {
	assert.Equal(t, "(1+2i)", Value(complex(1, 2)))

	type withErr struct {
		Err error `json:"err"`
	}
	assert.Equal(t, map[string]any{"err": "boom"}, Value(withErr{Err: assertErr("boom")}))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestHostileObjectDoesNotPanic(t *testing.T) {
	vm := goja.New()
	v := runJS(t, vm, `({ get x() { throw new Error("no"); } })`)

	assert.NotPanics(t, func() { New(vm).Value(v) })
}

func TestToJS(t *testing.T) {
	vm := goja.New()
	tree := map[string]any{
		"list": []any{int64(1), "two", nil},
		"obj":  map[string]any{"k": true},
	}
	require.NoError(t, vm.Set("tree", ToJS(vm, tree)))

	v := runJS(t, vm, `Array.isArray(tree.list) && tree.list.length === 3 && tree.obj.k === true`)
	assert.True(t, v.ToBoolean())

	back := New(vm).Value(vm.Get("tree"))
	assert.Equal(t, tree, back)
}
