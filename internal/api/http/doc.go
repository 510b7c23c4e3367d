// Package http exposes the shell's window commands over gin.
//
// Routes:
//
//	GET    /                      service banner
//	GET    /health                window and connection counts
//	GET    /windows               launched and connected windows
//	POST   /windows               create a window, or focus an existing label
//	DELETE /windows/:id           close a window
//	POST   /windows/:id/reattach  send the window's tab to the main window
//	GET    /ipc?window=<label>    WebSocket IPC
//
// Every command answers {"success": bool, "error"?: string, "window_id"?: string}.
package http
