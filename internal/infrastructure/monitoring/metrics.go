package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// several engines (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	CompileFailures   prometheus.Counter
	IsolatedContexts  prometheus.Gauge
	QueueWaiting      prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current execution totals for the JSON API
type Snapshot struct {
	Executions       int64   `json:"executions"`
	Failures         int64   `json:"failures"`
	Timeouts         int64   `json:"timeouts"`
	IsolatedContexts int64   `json:"isolated_contexts"`
	QueueWaiting     int64   `json:"queue_waiting"`
	AvgDurationMs    float64 `json:"avg_duration_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbox_executions_total",
				Help: "Settled snippet executions by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbox_execution_duration_seconds",
				Help:    "Wall-clock time from dispatch to settle",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tier"},
		),
		CompileFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbox_compile_failures_total",
				Help: "Snippets rejected before execution",
			},
		),
		IsolatedContexts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbox_isolated_contexts",
				Help: "Isolated contexts currently alive",
			},
		),
		QueueWaiting: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbox_queue_waiting",
				Help: "Requests waiting for the in-process lane",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scriptbox_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves this instance's metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordExecution records one settled execution
func (m *Metrics) RecordExecution(tier, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(tier, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(tier).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Executions++
	m.snapshot.totalDuration += duration.Seconds()
	switch outcome {
	case "ok":
	case "timeout":
		m.snapshot.Timeouts++
		m.snapshot.Failures++
	default:
		m.snapshot.Failures++
	}
	m.mu.Unlock()
}

// IncCompileFailures counts a snippet rejected at compile time
func (m *Metrics) IncCompileFailures() {
	if m == nil {
		return
	}
	m.CompileFailures.Inc()
}

// AddIsolatedContexts adjusts the live isolated context gauge
func (m *Metrics) AddIsolatedContexts(delta int) {
	if m == nil {
		return
	}
	m.IsolatedContexts.Add(float64(delta))
	m.mu.Lock()
	m.snapshot.IsolatedContexts += int64(delta)
	m.mu.Unlock()
}

// AddQueueWaiting adjusts the in-process queue depth gauge
func (m *Metrics) AddQueueWaiting(delta int) {
	if m == nil {
		return
	}
	m.QueueWaiting.Add(float64(delta))
	m.mu.Lock()
	m.snapshot.QueueWaiting += int64(delta)
	m.mu.Unlock()
}

// Snapshot returns the current totals
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.Executions > 0 {
		s.AvgDurationMs = s.totalDuration / float64(s.Executions) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
