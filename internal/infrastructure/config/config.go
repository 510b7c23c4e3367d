package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "WORKSPACE_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Window    WindowConfig    `yaml:"window"`
	Drag      DragConfig      `yaml:"drag"`
	Host      HostConfig      `yaml:"host"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds the shell's HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port"`
	Host string `envconfig:"HOST" yaml:"host"`
}

// WindowConfig holds the geometry of detached tab windows.
type WindowConfig struct {
	Page        string `envconfig:"WINDOW_PAGE" yaml:"page"`
	Width       int    `envconfig:"WINDOW_WIDTH" yaml:"width"`
	Height      int    `envconfig:"WINDOW_HEIGHT" yaml:"height"`
	MinWidth    int    `envconfig:"WINDOW_MIN_WIDTH" yaml:"min_width"`
	MinHeight   int    `envconfig:"WINDOW_MIN_HEIGHT" yaml:"min_height"`
	AlwaysOnTop bool   `envconfig:"WINDOW_ALWAYS_ON_TOP" yaml:"always_on_top"`
}

// DragConfig holds pointer gesture thresholds, in pixels.
type DragConfig struct {
	MinDistance     float64 `envconfig:"DRAG_MIN_DISTANCE" yaml:"min_distance"`
	DetachThreshold float64 `envconfig:"DRAG_DETACH_THRESHOLD" yaml:"detach_threshold"`
	FallbackX       int     `envconfig:"DRAG_FALLBACK_X" yaml:"fallback_x"`
	FallbackY       int     `envconfig:"DRAG_FALLBACK_Y" yaml:"fallback_y"`
}

// HostConfig holds host runtime settings shared by the shell and windows.
type HostConfig struct {
	ShellURL       string        `envconfig:"SHELL_URL" yaml:"shell_url"`
	CallTimeout    time.Duration `envconfig:"HOST_CALL_TIMEOUT" yaml:"call_timeout"`
	EventQueueSize int           `envconfig:"EVENT_QUEUE_SIZE" yaml:"event_queue_size"`
	WindowCommand  string        `envconfig:"WINDOW_COMMAND" yaml:"window_command"`
	WindowArgs     []string      `envconfig:"WINDOW_ARGS" yaml:"window_args"`
	// LaunchMain starts the main window process when the shell comes up.
	LaunchMain bool `envconfig:"LAUNCH_MAIN" yaml:"launch_main"`
	// LaunchFailures consecutive failed launches open the launch breaker
	// for LaunchCooldown.
	LaunchFailures uint32        `envconfig:"LAUNCH_FAILURES" yaml:"launch_failures"`
	LaunchCooldown time.Duration `envconfig:"LAUNCH_COOLDOWN" yaml:"launch_cooldown"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Load builds configuration from defaults, then the YAML file named by
// WORKSPACE_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8420",
			Host: "127.0.0.1",
		},
		Window: WindowConfig{
			Page:        "tab.html",
			Width:       800,
			Height:      600,
			MinWidth:    600,
			MinHeight:   400,
			AlwaysOnTop: true,
		},
		Drag: DragConfig{
			MinDistance:     8,
			DetachThreshold: 80,
			FallbackX:       100,
			FallbackY:       100,
		},
		Host: HostConfig{
			ShellURL:       "http://127.0.0.1:8420",
			CallTimeout:    10 * time.Second,
			EventQueueSize: 256,
			LaunchFailures: 5,
			LaunchCooldown: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects settings the window protocol cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Window.MinWidth > c.Window.Width || c.Window.MinHeight > c.Window.Height {
		errs = append(errs, errors.New("window minimum size exceeds default size"))
	}
	if c.Drag.MinDistance < 0 || c.Drag.DetachThreshold < 0 {
		errs = append(errs, errors.New("drag thresholds must not be negative"))
	}
	if c.Host.CallTimeout < 0 {
		errs = append(errs, errors.New("host call timeout must not be negative"))
	}
	if c.Host.LaunchMain && c.Host.WindowCommand == "" {
		errs = append(errs, errors.New("launching the main window requires a window command"))
	}
	if c.Host.EventQueueSize <= 0 {
		errs = append(errs, errors.New("event queue size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
