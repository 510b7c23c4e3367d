package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workspace"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Window lifecycle
	WindowsOpen    prometheus.Gauge
	WindowsCreated *prometheus.CounterVec

	// Tab transfers
	Detaches   *prometheus.CounterVec
	Reattaches *prometheus.CounterVec
	Drops      *prometheus.CounterVec

	// Event bus
	HandlerFaults *prometheus.CounterVec

	// Shell operations
	ShellCalls    *prometheus.CounterVec
	ShellDuration *prometheus.HistogramVec

	// IPC
	IPCConnections prometheus.Gauge
	IPCMessages    *prometheus.CounterVec

	startTime time.Time
	gatherer  prometheus.Gatherer

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the health endpoint
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	WindowsOpen    int64   `json:"windows_open"`
	IPCConnections int64   `json:"ipc_connections"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	UptimeSeconds  float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics registers the collectors on reg. Each shell owns its registry,
// so several can coexist in one process (tests included).
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		gatherer:  reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		WindowsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "windows_open",
				Help:      "Number of windows launched by the shell and still open",
			},
		),
		WindowsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "windows_created_total",
				Help:      "Window creation requests by outcome",
			},
			[]string{"outcome"},
		),

		Detaches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tab_detaches_total",
				Help:      "Tab detach attempts by outcome",
			},
			[]string{"outcome"},
		),
		Reattaches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tab_reattaches_total",
				Help:      "Tab reattach attempts by outcome",
			},
			[]string{"outcome"},
		),
		Drops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tab_drops_total",
				Help:      "Cross-window tab drops by outcome",
			},
			[]string{"outcome"},
		),

		HandlerFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_handler_faults_total",
				Help:      "Event handlers that failed or panicked, by event kind",
			},
			[]string{"kind"},
		),

		ShellCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shell_calls_total",
				Help:      "Shell commands served, by operation and status",
			},
			[]string{"operation", "status"},
		),
		ShellDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "shell_call_duration_seconds",
				Help:      "Shell command duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		IPCConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ipc_connections",
				Help:      "Number of connected window sockets",
			},
		),
		IPCMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ipc_messages_total",
				Help:      "IPC frames by direction and type",
			},
			[]string{"direction", "frame"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Shell uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordShellCall records one served shell command
func (m *Metrics) RecordShellCall(operation, status string, duration time.Duration) {
	m.ShellCalls.WithLabelValues(operation, status).Inc()
	m.ShellDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetWindowsOpen sets the number of open windows
func (m *Metrics) SetWindowsOpen(n int) {
	m.WindowsOpen.Set(float64(n))
	m.mu.Lock()
	m.snapshot.WindowsOpen = int64(n)
	m.mu.Unlock()
}

// RecordWindowCreated counts a window creation request
func (m *Metrics) RecordWindowCreated(outcome string) {
	m.WindowsCreated.WithLabelValues(outcome).Inc()
}

// RecordDetach counts a detach attempt
func (m *Metrics) RecordDetach(outcome string) {
	m.Detaches.WithLabelValues(outcome).Inc()
}

// RecordReattach counts a reattach attempt
func (m *Metrics) RecordReattach(outcome string) {
	m.Reattaches.WithLabelValues(outcome).Inc()
}

// RecordDrop counts a cross-window drop
func (m *Metrics) RecordDrop(outcome string) {
	m.Drops.WithLabelValues(outcome).Inc()
}

// RecordHandlerFault counts a failed event handler
func (m *Metrics) RecordHandlerFault(kind string) {
	m.HandlerFaults.WithLabelValues(kind).Inc()
}

// SetIPCConnections sets the number of connected windows
func (m *Metrics) SetIPCConnections(n int) {
	m.IPCConnections.Set(float64(n))
	m.mu.Lock()
	m.snapshot.IPCConnections = int64(n)
	m.mu.Unlock()
}

// RecordIPCMessage counts an IPC frame
func (m *Metrics) RecordIPCMessage(direction, frame string) {
	m.IPCMessages.WithLabelValues(direction, frame).Inc()
}

// Snapshot returns current values for JSON consumers
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgLatencyMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
