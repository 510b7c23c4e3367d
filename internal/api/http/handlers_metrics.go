package http

import (
	"github.com/anafis/workspace/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil collector disables
// tracking.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing a shell command. The returned func records it with
// the final status.
func (hm *HandlerMetrics) Track(operation string) func(status string) {
	if hm == nil || hm.metrics == nil {
		return func(string) {}
	}
	timer := monitoring.NewTimer(hm.metrics, operation)
	return timer.Stop
}

// Snapshot returns current values, or a zero snapshot without a collector.
func (hm *HandlerMetrics) Snapshot() monitoring.Snapshot {
	if hm == nil || hm.metrics == nil {
		return monitoring.Snapshot{}
	}
	return hm.metrics.Snapshot()
}
