// Package server provides the HTTP server that hosts the geoproxy routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/geoproxy/internal/config"
	"github.com/vyrodovalexey/geoproxy/internal/health"
	"github.com/vyrodovalexey/geoproxy/internal/middleware"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid races.
var ginModeOnce sync.Once

// ErrAlreadyRunning is returned by Start on a running server.
var ErrAlreadyRunning = errors.New("server already running")

// probePaths are excluded from the access log and tracing.
var probePaths = []string{health.RouteHealth, health.RouteReady, health.RouteLive}

// Config holds configuration for the HTTP server.
type Config struct {
	Address           string
	Port              int
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return ConfigFrom(config.DefaultConfig().Server)
}

// ConfigFrom converts the file configuration.
func ConfigFrom(s config.ServerConfig) *Config {
	return &Config{
		Address:           s.Address,
		Port:              s.Port,
		ReadTimeout:       s.ReadTimeout.Duration(),
		ReadHeaderTimeout: s.ReadHeaderTimeout.Duration(),
		WriteTimeout:      s.WriteTimeout.Duration(),
		IdleTimeout:       s.IdleTimeout.Duration(),
		MaxHeaderBytes:    1 << 20,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// RouteRegistrar adds routes to the engine.
type RouteRegistrar func(r gin.IRoutes)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracerProvider sets the tracer provider for server spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithHealth mounts the probe endpoints.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithRoutes adds route registrars applied after the middleware chain.
func WithRoutes(registrars ...RouteRegistrar) Option {
	return func(s *Server) {
		s.registrars = append(s.registrars, registrars...)
	}
}

// Server is the HTTP server for the proxy routes.
type Server struct {
	config         *Config
	engine         *gin.Engine
	logger         observability.Logger
	metrics        *observability.Metrics
	tracerProvider trace.TracerProvider
	health         *health.Handler
	registrars     []RouteRegistrar

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// New creates a server with the middleware chain and routes installed.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ginModeOnce.Do(func() {
		if gin.Mode() == gin.DebugMode {
			gin.SetMode(gin.ReleaseMode)
		}
	})

	s := &Server{
		config: cfg,
		engine: gin.New(),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		TracerProvider: s.tracerProvider,
		SkipPaths:      probePaths,
	}))
	if s.metrics != nil {
		s.engine.Use(middleware.Metrics(s.metrics))
	}
	s.engine.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger:    s.logger,
		SkipPaths: probePaths,
	}))
	s.engine.Use(middleware.Recovery(s.logger))
	s.engine.Use(middleware.SecurityHeaders())
	s.engine.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	if s.health != nil {
		s.health.RegisterRoutes(s.engine)
	}
	for _, register := range s.registrars {
		register(s.engine)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves until Stop is
// called. It returns nil after a graceful stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyRunning
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}
	s.listener = ln
	s.running = true
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", ln.Addr().String()),
		observability.Duration("read_timeout", s.config.ReadTimeout),
		observability.Duration("write_timeout", s.config.WriteTimeout),
	)

	err := httpServer.Serve(ln)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and stops the server. Readiness fails
// while draining.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	httpServer := s.httpServer
	running := s.running
	s.mu.RUnlock()

	if !running || httpServer == nil {
		return nil
	}

	if s.health != nil {
		s.health.SetDraining(true)
	}

	s.logger.Info("stopping HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ListenAddr returns the bound address, or an empty string before Start.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
