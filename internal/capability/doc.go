// Package capability derives the restricted API surface handed to a snippet.
//
// The host registers named capabilities in a Registry. For each execution,
// Build takes a snapshot, narrows it with PickKeys when an allow-list is
// given, copies it into fresh JS objects bound to the executing runtime and,
// in frozen mode, applies DeepFreeze. The registry itself is never exposed.
//
// Capabilities that need the executing runtime, or that complete later,
// register a Binder and use the Scope they are bound to:
//
//	reg.Register("clock", capability.Binder(func(s capability.Scope) any {
//		return map[string]any{
//			"later": func() goja.Value {
//				return s.Async(func(ctx context.Context) (any, error) {
//					return time.Now().Unix(), nil
//				})
//			},
//		}
//	}))
package capability
