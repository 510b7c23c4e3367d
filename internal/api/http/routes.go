package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the shell's command surface and IPC socket.
func RegisterRoutes(router gin.IRouter, h *Handlers) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	// Window lifecycle
	router.GET("/windows", h.ListWindows)
	router.POST("/windows", h.CreateWindow)
	router.DELETE("/windows/:id", h.CloseWindow)
	router.POST("/windows/:id/reattach", h.ReattachTab)

	// IPC
	router.GET("/ipc", h.shell.Hub().HandleConnection)
}
