// Package tracing provides lightweight request tracing.
//
// A Tracer creates spans that carry a trace id and a parent span id through
// context.Context. Finished spans are handed to a collector goroutine that
// logs them at debug level. Trace ids are continued from the X-Trace-ID and
// X-Span-ID request headers and echoed on responses.
//
//	tracer := tracing.New("scriptbox", logger)
//	router.Use(tracing.HTTPMiddleware(tracer))
//
//	span, ctx := tracer.StartSpan(ctx, "sandbox.execute")
//	defer func() { span.Finish(); tracer.Submit(span) }()
package tracing
