package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
)

// blockConstructors makes every function constructor reachable from a
// function value throw, so code text cannot be turned into code again.
const blockConstructors = `(function () {
	var blocked = function () { throw new TypeError("Function constructor is disabled"); };
	var protos = [
		Function.prototype,
		Object.getPrototypeOf(async function () {}),
		Object.getPrototypeOf(function* () {})
	];
	for (var i = 0; i < protos.length; i++) {
		Object.defineProperty(protos[i], "constructor", {
			value: blocked, writable: false, configurable: false, enumerable: false
		});
	}
})();`

var removedGlobals = []string{"eval", "Function", "require", "process", "module", "exports"}

// harden configures a fresh runtime for untrusted snippets.
func harden(vm *goja.Runtime, maxCallStack int) error {
	if maxCallStack > 0 {
		vm.SetMaxCallStackSize(maxCallStack)
	}

	if _, err := vm.RunString(blockConstructors); err != nil {
		return fmt.Errorf("failed to block function constructors: %w", err)
	}

	global := vm.GlobalObject()
	for _, name := range removedGlobals {
		if err := global.Delete(name); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	// Timers are no-ops
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := vm.Set(name, noop); err != nil {
			return err
		}
	}
	return nil
}

// lockdownIntrinsics freezes every object reachable from the global bindings
// and pins those bindings, so a long-lived runtime cannot be modified by one
// snippet in a way the next one observes. Inherited properties that code
// commonly shadows by assignment become accessors that define an own
// property on the receiver instead of failing against a frozen prototype.
const lockdownIntrinsics = `(function () {
	var seen = new Set();
	var global = globalThis;
	var tamed = [];

	function tame(obj, prop) {
		var d = Object.getOwnPropertyDescriptor(obj, prop);
		if (!d || !d.configurable || !("value" in d)) return;
		var value = d.value;
		tamed.push(value);
		Object.defineProperty(obj, prop, {
			get: function () { return value; },
			set: function (v) {
				if (this === obj) throw new TypeError("Cannot assign to read only property '" + String(prop) + "'");
				Object.defineProperty(this, prop, { value: v, writable: true, enumerable: true, configurable: true });
			},
			enumerable: d.enumerable,
			configurable: false
		});
	}

	function freeze(o) {
		if (o === null || o === undefined || o === global) return;
		if (typeof o !== "object" && typeof o !== "function") return;
		if (seen.has(o)) return;
		seen.add(o);
		Object.freeze(o);
		var keys = Reflect.ownKeys(o);
		for (var i = 0; i < keys.length; i++) {
			var d = Object.getOwnPropertyDescriptor(o, keys[i]);
			if ("value" in d) {
				freeze(d.value);
			} else {
				freeze(d.get);
				freeze(d.set);
			}
		}
		freeze(Object.getPrototypeOf(o));
	}

	["constructor", "toString", "toLocaleString", "valueOf", "hasOwnProperty"].forEach(function (p) {
		tame(Object.prototype, p);
	});
	[Error, TypeError, RangeError, SyntaxError, ReferenceError, EvalError, URIError].forEach(function (E) {
		["name", "message", "constructor", "toString"].forEach(function (p) { tame(E.prototype, p); });
	});
	tame(Array.prototype, "constructor");
	tame(Array.prototype, "toString");
	for (var t = 0; t < tamed.length; t++) freeze(tamed[t]);

	var names = Object.getOwnPropertyNames(global);
	for (var i = 0; i < names.length; i++) {
		var d = Object.getOwnPropertyDescriptor(global, names[i]);
		if (d.configurable) {
			d.configurable = false;
			if ("value" in d) d.writable = false;
			Object.defineProperty(global, names[i], d);
		}
		freeze(d.value);
	}

	var roots = [
		Object.getPrototypeOf(async function () {}),
		Object.getPrototypeOf(function* () {}),
		Object.getPrototypeOf([][Symbol.iterator]()),
		Object.getPrototypeOf(new Map()[Symbol.iterator]()),
		Object.getPrototypeOf(new Set()[Symbol.iterator]()),
		Object.getPrototypeOf(""[Symbol.iterator]())
	];
	for (var j = 0; j < roots.length; j++) freeze(roots[j]);
})();`

// lockdown applies lockdownIntrinsics. It must run after every global the
// shared runtime needs has been installed.
func lockdown(vm *goja.Runtime) error {
	if _, err := vm.RunString(lockdownIntrinsics); err != nil {
		return fmt.Errorf("failed to lock down intrinsics: %w", err)
	}
	return nil
}

// globalSet is a snapshot of the global object's own keys
type globalSet struct {
	names   map[string]struct{}
	symbols map[*goja.Symbol]struct{}
}

func snapshotGlobals(vm *goja.Runtime) globalSet {
	global := vm.GlobalObject()
	s := globalSet{
		names:   make(map[string]struct{}),
		symbols: make(map[*goja.Symbol]struct{}),
	}
	for _, name := range global.GetOwnPropertyNames() {
		s.names[name] = struct{}{}
	}
	for _, sym := range global.Symbols() {
		s.symbols[sym] = struct{}{}
	}
	return s
}

// sweep deletes globals added since the snapshot was taken. Deletion never
// invokes accessors. An error means a snippet left a binding that cannot be
// removed and the runtime has to be replaced.
func (s globalSet) sweep(vm *goja.Runtime) error {
	global := vm.GlobalObject()
	for _, name := range global.GetOwnPropertyNames() {
		if _, ok := s.names[name]; ok {
			continue
		}
		if err := global.Delete(name); err != nil {
			return fmt.Errorf("failed to remove global %s: %w", name, err)
		}
	}
	for _, sym := range global.Symbols() {
		if _, ok := s.symbols[sym]; ok {
			continue
		}
		if err := global.DeleteSymbol(sym); err != nil {
			return fmt.Errorf("failed to remove global symbol: %w", err)
		}
	}
	return nil
}
