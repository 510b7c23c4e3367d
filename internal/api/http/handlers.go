package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/host"
	"github.com/anafis/workspace/internal/infrastructure/resilience"
	"github.com/anafis/workspace/internal/shared/id"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handlers contains all HTTP handlers of the shell
type Handlers struct {
	shell   *host.Shell
	metrics *HandlerMetrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(shell *host.Shell, metrics *HandlerMetrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		shell:   shell,
		metrics: metrics,
		logger:  logger,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "workspace shell",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	hub := h.shell.Hub()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"windows":        len(h.shell.Windows()),
		"connections":    len(hub.Windows()),
		"main_connected": hub.Connected(id.MainWindow),
		"metrics":        h.metrics.Snapshot(),
	})
}

// ListWindows lists launched and connected windows
func (h *Handlers) ListWindows(c *gin.Context) {
	windows := h.shell.Windows()
	c.JSON(http.StatusOK, gin.H{
		"windows": windows,
		"count":   len(windows),
	})
}

// CreateWindow opens a window, or focuses the one already using the label
func (h *Handlers) CreateWindow(c *gin.Context) {
	done := h.metrics.Track("create_window")

	var spec window.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		done("invalid")
		fail(c, http.StatusBadRequest, err)
		return
	}
	if !spec.Label.Valid() {
		done("invalid")
		fail(c, http.StatusBadRequest, errors.New("invalid window label"))
		return
	}

	windowID, err := h.shell.CreateWindow(c.Request.Context(), spec)
	if err != nil {
		done("error")
		status := http.StatusBadGateway
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		fail(c, status, err)
		return
	}

	done("success")
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"window_id": windowID,
	})
}

// CloseWindow closes a window
func (h *Handlers) CloseWindow(c *gin.Context) {
	done := h.metrics.Track("close_window")

	windowID := id.WindowID(c.Param("id"))
	if !windowID.Valid() {
		done("invalid")
		fail(c, http.StatusBadRequest, errors.New("invalid window label"))
		return
	}

	if err := h.shell.CloseWindow(c.Request.Context(), windowID); err != nil {
		if errors.Is(err, window.ErrWindowNotFound) {
			done("not_found")
			fail(c, http.StatusNotFound, err)
			return
		}
		done("error")
		fail(c, http.StatusInternalServerError, err)
		return
	}

	done("success")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"window_id": windowID,
	})
}

// ReattachTab forwards the sender's tab to the main window. The sender
// closes itself after a successful reply.
func (h *Handlers) ReattachTab(c *gin.Context) {
	done := h.metrics.Track("reattach_tab")

	from := id.WindowID(c.Param("id"))
	if !from.Valid() || from.IsMain() {
		done("invalid")
		fail(c, http.StatusBadRequest, errors.New("reattach must come from a detached window"))
		return
	}

	var info tabs.Info
	if err := c.ShouldBindJSON(&info); err != nil {
		done("invalid")
		fail(c, http.StatusBadRequest, err)
		return
	}

	err := h.shell.Reattach(c.Request.Context(), from, info)
	switch {
	case err == nil:
	case errors.Is(err, tabs.ErrEmptyTabID), errors.Is(err, tabs.ErrUnknownContentType), errors.Is(err, tabs.ErrPinnedTab):
		done("invalid")
		fail(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, host.ErrMainNotConnected):
		done("unavailable")
		fail(c, http.StatusServiceUnavailable, err)
		return
	default:
		done("error")
		fail(c, http.StatusInternalServerError, err)
		return
	}

	done("success")
	h.logger.Debug("Reattach forwarded", zap.String("from", from.String()), zap.String("tab", info.ID))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"window_id": id.MainWindow,
	})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
