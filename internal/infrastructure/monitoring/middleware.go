package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures one execution from dispatch to settle
type Timer struct {
	start   time.Time
	metrics *Metrics
	tier    string
}

// NewTimer starts a timer for the given tier
func NewTimer(metrics *Metrics, tier string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		tier:    tier,
	}
}

// Stop records the execution with its outcome and returns the elapsed time
func (t *Timer) Stop(outcome string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordExecution(t.tier, outcome, duration)
	return duration
}
