// Package main is the entry point for the workspace shell.
//
// The shell launches window processes, relays cross-window tab events
// between them over its IPC socket, and serves the command API windows use
// to create, close and reattach.
//
// Architecture:
//
//	window (main)     ─┐
//	window (tab_<id>) ─┼─ HTTP commands + /ipc socket ─→ shell
//	window (tab_<id>) ─┘
//
// Configuration:
//   - Defaults, then the YAML file named by WORKSPACE_CONFIG
//   - Environment variables (12-factor)
//   - CLI flags (override both)
//
// Usage:
//
//	./server -port 8420 -window-command ./window -launch-main
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, stopping every launched window
package main
