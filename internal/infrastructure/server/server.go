package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	apihttp "github.com/anafis/workspace/internal/api/http"
	"github.com/anafis/workspace/internal/api/middleware"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/host"
	"github.com/anafis/workspace/internal/infrastructure/config"
	"github.com/anafis/workspace/internal/infrastructure/logging"
	"github.com/anafis/workspace/internal/infrastructure/monitoring"
	"github.com/anafis/workspace/internal/infrastructure/resilience"
	"github.com/anafis/workspace/internal/infrastructure/tracing"
	"github.com/anafis/workspace/internal/shared/id"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the shell's HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	mu      sync.Mutex
	http    *http.Server // Protected by mu
	shell   *host.Shell
	hub     *host.Hub
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// Option customizes a server before it is assembled.
type Option func(*options)

type options struct {
	launcher host.Launcher
	logger   *logging.Logger
}

// WithLauncher replaces the launcher derived from configuration.
func WithLauncher(l host.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithLogger replaces the logger derived from configuration.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewServer creates a new shell server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing workspace shell",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	// Metrics first, every other component records into them
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	tracer := tracing.New("shell", logger.Named("tracing"))

	launcher := o.launcher
	if launcher == nil {
		launcher = newLauncher(cfg, logger)
	}

	breaker := resilience.New("window-launch", resilience.Settings{
		Threshold: cfg.Host.LaunchFailures,
		Cooldown:  cfg.Host.LaunchCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	hub := host.NewHub(logger.Named("ipc"), metrics)
	shell := host.NewShell(hub, launcher,
		host.WithBreaker(breaker),
		host.WithShellLogger(logger.Named("shell")),
		host.WithShellRecorder(metrics),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(shell, apihttp.NewHandlerMetrics(metrics), logger.Named("http"))
	apihttp.RegisterRoutes(router, handlers)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		shell:   shell,
		hub:     hub,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler returns the shell's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shell returns the window shell.
func (s *Server) Shell() *host.Shell {
	return s.shell
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run listens on the configured address and serves until Close.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Close. The main window is launched once the
// listener is up when LaunchMain is set.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	if s.config.Host.LaunchMain {
		go s.launchMain()
	}

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(shutdownErr))
			err = fmt.Errorf("failed to shut down HTTP server: %w", shutdownErr)
		}
	}

	s.shell.Close()
	s.tracer.Close()
	s.logger.Sync()
	return err
}

func (s *Server) launchMain() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Host.CallTimeout)
	defer cancel()

	if _, err := s.shell.CreateWindow(ctx, MainSpec(s.config)); err != nil {
		s.logger.Error("Failed to launch main window", zap.Error(err))
	}
}

// MainSpec describes the main window the shell launches on start.
func MainSpec(cfg *config.Config) window.Spec {
	return window.Spec{
		Label: id.MainWindow,
		Title: "Workspace",
		URL:   "index.html",
		Geometry: window.Geometry{
			Width:  cfg.Window.Width * 2,
			Height: cfg.Window.Height * 3 / 2,
		},
		MinWidth:    cfg.Window.MinWidth,
		MinHeight:   cfg.Window.MinHeight,
		Resizable:   true,
		Decorations: true,
	}
}

func newLauncher(cfg *config.Config, logger *logging.Logger) host.Launcher {
	if cfg.Host.WindowCommand == "" {
		logger.Warn("No window command configured, windows will not be launched")
		return &host.NopLauncher{}
	}
	return host.NewExecLauncher(cfg.Host.WindowCommand, cfg.Host.WindowArgs, cfg.Host.ShellURL, logger.Named("launcher"))
}
