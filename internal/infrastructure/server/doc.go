// Package server assembles the workspace shell: the window launcher and its
// circuit breaker, the IPC hub, the command API, metrics and tracing, all
// behind one gin router.
package server
