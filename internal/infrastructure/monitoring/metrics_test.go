package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDetach("success")
	m.RecordDetach("success")
	m.RecordDetach("failure")
	m.RecordReattach("success")
	m.RecordDrop("received")
	m.RecordHandlerFault("tab-drop")
	m.RecordWindowCreated("rejected")
	m.RecordIPCMessage("in", "event")
	m.SetWindowsOpen(3)
	m.SetIPCConnections(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Detaches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Detaches.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reattaches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Drops.WithLabelValues("received")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerFaults.WithLabelValues("tab-drop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowsCreated.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IPCMessages.WithLabelValues("in", "event")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WindowsOpen))

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.WindowsOpen)
	assert.Equal(t, int64(2), s.IPCConnections)
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.DELETE("/windows/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/windows/tab_a", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("DELETE", "/windows/:id", "404")))
	s := m.Snapshot()
	assert.Equal(t, int64(1), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "workspace_http_requests_total")
	assert.Contains(t, string(body), "workspace_uptime_seconds")
}

func TestTimer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	NewTimer(m, "close_window").Stop("success")
	NewTimer(nil, "noop").Stop("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShellCalls.WithLabelValues("close_window", "success")))
}
