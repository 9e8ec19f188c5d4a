package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chatrelay/gateway/pkg/config"
	"chatrelay/gateway/pkg/server/middleware"
	"chatrelay/gateway/pkg/telemetry/health"
)

// Routes holds the handlers mounted by the server. Only Chat is required;
// nil handlers are not mounted.
type Routes struct {
	// Chat is the relay endpoint.
	Chat http.Handler

	// Sessions mounts the session store endpoints.
	Sessions interface{ Register(mux *http.ServeMux) }

	// Export serves /api/export/{format}.
	Export http.Handler

	// Feedback serves /api/feedback.
	Feedback http.Handler

	// Log serves /api/log.
	Log http.Handler

	// Health serves /health and /ready.
	Health *health.Checker

	// Metrics is served at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	// Version is served at /version.
	Version http.Handler
}

// Server is the HTTP server of the chat relay.
type Server struct {
	config       config.ServerConfig
	routes       Routes
	logger       *slog.Logger
	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server. logger may be nil.
func NewServer(cfg config.ServerConfig, routes Routes, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		routes: routes,
		logger: logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled or the server fails. Cancellation triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	if s.routes.Chat == nil {
		s.mu.Unlock()
		return errors.New("server has no chat handler")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting chat relay server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("chat relay server stopped")
	})

	return shutdownErr
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := s.setupRoutes()

	handler := middleware.Chain(mux,
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS(middleware.CORSHeaders(s.config.CORS)),
	)

	return otelhttp.NewHandler(handler, "chatrelay",
		otelhttp.WithFilter(s.traced),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + routeName(r.URL.Path)
		}),
	)
}

// setupRoutes registers every configured handler.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	r := s.routes

	mux.Handle("/api/chat", r.Chat)
	if r.Sessions != nil {
		r.Sessions.Register(mux)
	}
	if r.Export != nil {
		mux.Handle("/api/export/", r.Export)
	}
	if r.Feedback != nil {
		mux.Handle("/api/feedback", r.Feedback)
	}
	if r.Log != nil {
		mux.Handle("/api/log", r.Log)
	}
	if r.Health != nil {
		mux.Handle("/health", r.Health.LivenessHandler())
		mux.Handle("/ready", r.Health.ReadinessHandler())
	}
	if r.Version != nil {
		mux.Handle("/version", r.Version)
	}
	if r.Metrics != nil {
		path := r.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle(path, r.Metrics)
	}
	return mux
}

// traced excludes probe and scrape traffic from tracing.
func (s *Server) traced(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/ready", "/version":
		return false
	}
	return s.routes.MetricsPath == "" || r.URL.Path != s.routes.MetricsPath
}

// routeName collapses per-format export paths into one span name.
func routeName(path string) string {
	if strings.HasPrefix(path, "/api/export/") {
		return "/api/export/{format}"
	}
	return path
}
