/*
Package monitoring provides Prometheus metrics for the execution engine and
its HTTP surface.

# Metrics

  - scriptbox_executions_total{tier,outcome}
  - scriptbox_execution_duration_seconds{tier}
  - scriptbox_compile_failures_total
  - scriptbox_isolated_contexts
  - scriptbox_queue_waiting
  - scriptbox_http_requests_total{method,path,status}
  - scriptbox_http_request_duration_seconds{method,path}

Every Metrics value owns a private registry; a nil *Metrics is valid and
records nothing.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "isolated")
	// ... run ...
	timer.Stop("ok")
*/
package monitoring
