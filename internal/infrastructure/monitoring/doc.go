/*
Package monitoring provides Prometheus metrics for the workspace shell and
its windows.

# Metrics

  - HTTP requests (count, latency, sizes) per route template
  - windows open, window creations by outcome (success, focused, failure, rejected)
  - tab detaches, reattaches and cross-window drops by outcome
  - event handler faults by event kind
  - IPC connections and frames by direction and type

Metrics implements the recorder interfaces of the workspace and host
packages, so the same collector observes both sides.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "create_window")
	// ... serve the command ...
	timer.Stop("success")
*/
package monitoring
