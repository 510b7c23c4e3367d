// Package config provides 12-factor configuration for the desktop shell and
// its window processes.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by WORKSPACE_CONFIG, then environment variables.
//
// Configuration Sections:
//   - Server: shell HTTP/IPC listener (port, host)
//   - Window: detached window page and geometry
//   - Drag: pointer gesture thresholds
//   - Host: shell URL, host call timeout, event queue, window launcher and
//     its breaker (LAUNCH_FAILURES, LAUNCH_COOLDOWN), LAUNCH_MAIN
//   - Logging: log level and output format
//   - RateLimit: per-client rate limiting on the shell API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Shell listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
