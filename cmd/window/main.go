package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/drag"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/domain/workspace"
	"github.com/anafis/workspace/internal/host"
	"github.com/anafis/workspace/internal/infrastructure/config"
	"github.com/anafis/workspace/internal/infrastructure/logging"
	"github.com/anafis/workspace/internal/infrastructure/monitoring"
	"github.com/anafis/workspace/internal/shared/id"
)

// Version is set via ldflags at build time.
var Version = "dev"

type options struct {
	label       string
	bootURL     string
	console     bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := options{
		label:   os.Getenv(host.EnvWindowLabel),
		bootURL: os.Getenv(host.EnvWindowURL),
	}

	cmd := &cobra.Command{
		Use:           "window",
		Short:         "Headless workspace window process",
		Long:          "Runs one workspace window: the main window, or a window detached for a single tab.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.label, "label", opts.label, "window label, main or tab_<id>")
	f.StringVar(&opts.bootURL, "url", opts.bootURL, "boot URL of a detached window")
	f.BoolVar(&opts.console, "console", true, "read tab commands from stdin")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve this window's metrics on addr")

	// Geometry flags are consumed by the embedding runtime.
	f.String("title", "", "window title")
	f.Int("x", 0, "window x position")
	f.Int("y", 0, "window y position")
	f.Int("width", 0, "window width")
	f.Int("height", 0, "window height")
	f.Bool("always-on-top", false, "keep the window above others")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "window %s\n", Version)
		},
	})
	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if url := os.Getenv(host.EnvShellURL); url != "" {
		cfg.Host.ShellURL = url
	}

	w := id.WindowID(opts.label)
	if w == "" {
		w = id.MainWindow
	}
	if !w.Valid() {
		return fmt.Errorf("invalid window label %q", w)
	}

	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	client := host.NewClient(cfg.Host.ShellURL, w, cfg.Host.CallTimeout, logger.ForWindow(w).Named("host"))
	deps := workspace.Deps{
		Host:    client,
		Factory: panel,
		Drag: drag.Config{
			MinDistance:     cfg.Drag.MinDistance,
			DetachThreshold: cfg.Drag.DetachThreshold,
			Fallback:        tabs.Position{X: cfg.Drag.FallbackX, Y: cfg.Drag.FallbackY},
		},
		Sizes: window.Sizes{
			Page:        cfg.Window.Page,
			Width:       cfg.Window.Width,
			Height:      cfg.Window.Height,
			MinWidth:    cfg.Window.MinWidth,
			MinHeight:   cfg.Window.MinHeight,
			AlwaysOnTop: cfg.Window.AlwaysOnTop,
		},
		HostTimeout: cfg.Host.CallTimeout,
		QueueSize:   cfg.Host.EventQueueSize,
		Relay:       client,
		Logger:      logger.Logger,
	}

	if opts.metricsAddr != "" {
		metrics := monitoring.NewMetrics(prometheus.NewRegistry())
		deps.Recorder = metrics
		go func() {
			if err := http.ListenAndServe(opts.metricsAddr, metrics.Handler()); err != nil {
				logger.Warn("Metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	var ws *workspace.Workspace
	if w.IsMain() {
		ws = workspace.NewMain(deps)
	} else {
		ws, err = workspace.BootDetached(opts.bootURL, deps)
		if err != nil {
			return err
		}
	}
	defer ws.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = client.Connect(ctx, ws.Bus(), host.Handlers{
		OnClose: cancel,
		OnFocus: func() { logger.Info("Focus requested by shell") },
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.console {
		go runConsole(ctx, ws, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	select {
	case <-ctx.Done():
	case <-client.Done():
		logger.Warn("Shell connection lost")
	}
	logger.Info("Window closing", zap.String("window_id", w.String()))
	return nil
}

// panel stands in for the UI toolkit's panel constructors.
func panel(ct tabs.ContentType) any {
	return "panel:" + string(ct)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
