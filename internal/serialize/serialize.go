package serialize

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// CircularMarker replaces a container that is already on the current descent path.
const CircularMarker = "[Circular]"

// TruncatedMarker replaces a container nested deeper than MaxDepth.
const TruncatedMarker = "[Truncated]"

// MaxDepth bounds how many containers deep a conversion descends.
const MaxDepth = 1024

// TimeLayout is the canonical text form for timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// maxSafeInteger is the largest integer a JS number holds exactly.
const maxSafeInteger = 1<<53 - 1

type absentValue struct{}

// absent marks values that are dropped: functions, symbols, undefined.
var absent = absentValue{}

// errAborted unwinds a conversion once its done channel is closed
var errAborted = errors.New("serialization aborted")

type visitKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// Serializer converts runtime values into transferable trees built only from
// nil, bool, int64, float64, string, []any and map[string]any.
//
// A Serializer is bound to at most one goja runtime and must be used on the
// goroutine that owns that runtime.
type Serializer struct {
	vm        *goja.Runtime
	arrayFrom goja.Callable
	jsSeen    map[*goja.Object]struct{}
	goSeen    map[visitKey]struct{}
	depth     int
	done      <-chan struct{}
}

// New creates a serializer. vm may be nil when only Go values are converted.
func New(vm *goja.Runtime) *Serializer {
	return &Serializer{
		vm:     vm,
		jsSeen: make(map[*goja.Object]struct{}),
		goSeen: make(map[visitKey]struct{}),
	}
}

// WithDone stops the conversion early once done is closed. An aborted
// conversion yields nil.
func (s *Serializer) WithDone(done <-chan struct{}) *Serializer {
	s.done = done
	return s
}

// Value converts v. It never panics and always terminates; an absent top-level
// value becomes nil.
func Value(v any) any {
	return New(nil).Value(v)
}

// Value converts v using the serializer's runtime for Map and Set traversal.
func (s *Serializer) Value(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			if r == errAborted {
				out = nil
				return
			}
			out = coerceString(v)
		}
	}()

	out = s.walk(v)
	if out == absent {
		return nil
	}
	return out
}

// checkpoint panics with errAborted once the conversion is cancelled
func (s *Serializer) checkpoint() {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
		panic(errAborted)
	default:
	}
}

// nest runs fn one container deeper
func (s *Serializer) nest(fn func() any) any {
	if s.depth >= MaxDepth {
		return TruncatedMarker
	}
	s.checkpoint()
	s.depth++
	defer func() { s.depth-- }()
	return fn()
}

func (s *Serializer) walk(v any) any {
	if v == nil {
		return nil
	}
	if jv, ok := v.(goja.Value); ok {
		return s.walkJS(jv)
	}
	return s.walkGo(reflect.ValueOf(v))
}

// ============================================================================
// JS values
// ============================================================================

func (s *Serializer) walkJS(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) {
		return absent
	}
	if goja.IsNull(v) {
		return nil
	}
	if _, ok := v.(*goja.Symbol); ok {
		return absent
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return s.walkGo(reflect.ValueOf(v.Export()))
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return absent
	}

	switch obj.ClassName() {
	case "Date":
		if t, ok := obj.Export().(time.Time); ok {
			return formatTime(t)
		}
		return nil
	case "RegExp":
		return coerceString(obj)
	}

	return s.nest(func() any { return s.walkObject(obj) })
}

func (s *Serializer) walkObject(obj *goja.Object) (out any) {
	if _, onPath := s.jsSeen[obj]; onPath {
		return CircularMarker
	}
	s.jsSeen[obj] = struct{}{}
	defer delete(s.jsSeen, obj)

	// Proxies and hostile getters panic out of the goja API.
	defer func() {
		if r := recover(); r != nil {
			if r == errAborted {
				panic(r)
			}
			out = coerceString(obj)
		}
	}()

	switch obj.ClassName() {
	case "Array":
		// Only present elements are visited; holes are absent, so a
		// sparse array costs what it stores rather than its length.
		keys := obj.Keys()
		seq := make([]any, 0, len(keys))
		for _, key := range keys {
			if !isArrayIndex(key) {
				continue
			}
			s.checkpoint()
			if item := s.walkJS(obj.Get(key)); item != absent {
				seq = append(seq, item)
			}
		}
		return seq
	case "Map", "Set":
		return s.walkCollection(obj)
	}

	keys := obj.Keys()
	mapping := make(map[string]any, len(keys))
	for _, key := range keys {
		s.checkpoint()
		if item := s.walkJS(obj.Get(key)); item != absent {
			mapping[key] = item
		}
	}
	return mapping
}

// walkCollection flattens Map into [key, value] pairs and Set into its values,
// both in insertion order.
func (s *Serializer) walkCollection(obj *goja.Object) any {
	if s.vm == nil {
		return s.walkGo(reflect.ValueOf(obj.Export()))
	}
	if s.arrayFrom == nil {
		from, ok := goja.AssertFunction(s.vm.Get("Array").ToObject(s.vm).Get("from"))
		if !ok {
			return s.walkGo(reflect.ValueOf(obj.Export()))
		}
		s.arrayFrom = from
	}

	entries, err := s.arrayFrom(goja.Undefined(), obj)
	if err != nil {
		return coerceString(obj)
	}
	list, ok := entries.(*goja.Object)
	if !ok {
		return []any{}
	}

	length := list.Get("length").ToInteger()
	seq := make([]any, 0, length)
	for i := int64(0); i < length; i++ {
		s.checkpoint()
		item := list.Get(strconv.FormatInt(i, 10))
		if pair, ok := item.(*goja.Object); ok && obj.ClassName() == "Map" {
			k := s.walkJS(pair.Get("0"))
			val := s.walkJS(pair.Get("1"))
			seq = append(seq, []any{orNil(k), orNil(val)})
			continue
		}
		if val := s.walkJS(item); val != absent {
			seq = append(seq, val)
		}
	}
	return seq
}

// ============================================================================
// Go values
// ============================================================================

var (
	timeType  = reflect.TypeOf(time.Time{})
	bigInt    = reflect.TypeOf(&big.Int{})
	bigFloat  = reflect.TypeOf(&big.Float{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	textType  = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func (s *Serializer) walkGo(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Type() {
	case timeType:
		return formatTime(rv.Interface().(time.Time))
	case bigInt:
		if rv.IsNil() {
			return nil
		}
		return rv.Interface().(*big.Int).String()
	case bigFloat:
		if rv.IsNil() {
			return nil
		}
		return rv.Interface().(*big.Float).Text('g', -1)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n > maxSafeInteger || n < -maxSafeInteger {
			return strconv.FormatInt(n, 10)
		}
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > maxSafeInteger {
			return strconv.FormatUint(n, 10)
		}
		return int64(n)
	case reflect.Float32, reflect.Float64:
		// JSON has no NaN or Infinity
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case reflect.String:
		return rv.String()
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return absent
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return s.walk(rv.Elem().Interface())
	}

	if rv.CanInterface() && rv.Type().Implements(errorType) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return rv.Interface().(error).Error()
	}
	if rv.CanInterface() && rv.Type().Implements(textType) {
		if rv.Kind() != reflect.Pointer || !rv.IsNil() {
			if text, err := rv.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
				return string(text)
			}
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return s.enter(visitKey{ptr: rv.Pointer(), typ: rv.Type()}, func() any {
			return s.nest(func() any { return s.walkGo(rv.Elem()) })
		})
	case reflect.Slice:
		if rv.IsNil() {
			return []any{}
		}
		return s.enter(visitKey{ptr: rv.Pointer(), typ: rv.Type(), n: rv.Len()}, func() any {
			return s.nest(func() any { return s.walkSequence(rv) })
		})
	case reflect.Array:
		return s.nest(func() any { return s.walkSequence(rv) })
	case reflect.Map:
		if rv.IsNil() {
			return map[string]any{}
		}
		return s.enter(visitKey{ptr: rv.Pointer(), typ: rv.Type()}, func() any {
			return s.nest(func() any { return s.walkMap(rv) })
		})
	case reflect.Struct:
		return s.nest(func() any { return s.walkStruct(rv) })
	}

	return roundTrip(rv)
}

// enter tracks a container on the current descent path.
func (s *Serializer) enter(key visitKey, fn func() any) any {
	if _, onPath := s.goSeen[key]; onPath {
		return CircularMarker
	}
	s.goSeen[key] = struct{}{}
	defer delete(s.goSeen, key)
	return fn()
}

func (s *Serializer) walkSequence(rv reflect.Value) any {
	seq := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s.checkpoint()
		if item := s.walkGo(rv.Index(i)); item != absent {
			seq = append(seq, item)
		}
	}
	return seq
}

func (s *Serializer) walkMap(rv reflect.Value) any {
	keys := rv.MapKeys()

	if rv.Type().Key().Kind() == reflect.String {
		mapping := make(map[string]any, len(keys))
		for _, k := range keys {
			if item := s.walkGo(rv.MapIndex(k)); item != absent {
				mapping[k.String()] = item
			}
		}
		return mapping
	}

	// Non-string keys become [key, value] pairs ordered by key text.
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	seq := make([]any, 0, len(keys))
	for _, k := range keys {
		seq = append(seq, []any{orNil(s.walkGo(k)), orNil(s.walkGo(rv.MapIndex(k)))})
	}
	return seq
}

func (s *Serializer) walkStruct(rv reflect.Value) any {
	rt := rv.Type()
	mapping := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		if item := s.walkGo(rv.Field(i)); item != absent {
			mapping[name] = item
		}
	}
	return mapping
}

// roundTrip re-encodes an unrecognized value once through JSON and falls
// back to its string form.
func roundTrip(rv reflect.Value) any {
	if !rv.CanInterface() {
		return coerceString(rv.String())
	}
	v := rv.Interface()

	data, err := sonic.Marshal(v)
	if err == nil {
		var decoded any
		if err := sonic.Unmarshal(data, &decoded); err == nil {
			return Value(decoded)
		}
	}
	return coerceString(v)
}

// isArrayIndex reports whether key is the canonical form of an array index
func isArrayIndex(key string) bool {
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return false
	}
	return strconv.FormatUint(n, 10) == key
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func orNil(v any) any {
	if v == absent {
		return nil
	}
	return v
}

func coerceString(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = "[Unserializable]"
		}
	}()

	if jv, ok := v.(goja.Value); ok {
		return jv.String()
	}
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
