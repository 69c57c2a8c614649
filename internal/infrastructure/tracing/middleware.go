package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Header names used to continue a trace across services
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// HTTPMiddleware starts a span per request, continuing any trace named in the
// request headers, and echoes the ids in the response headers.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(TraceHeader); traceID != "" {
			ctx = context.WithValue(ctx, traceIDKey, TraceID(traceID))
		}
		if parentID := c.GetHeader(SpanHeader); parentID != "" {
			ctx = context.WithValue(ctx, spanIDKey, SpanID(parentID))
		}

		span, ctx := tracer.StartSpan(ctx, c.FullPath())
		span.SetTag("http.method", c.Request.Method)

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, string(span.TraceID))
		c.Header(SpanHeader, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
