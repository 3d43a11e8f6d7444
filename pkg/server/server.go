// Package server provides the HTTP surface of the exporter: the metrics
// endpoint plus health, readiness, and an index route.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hwstack/hwhealth-exporter/pkg/config"
	"github.com/hwstack/hwhealth-exporter/pkg/defaults"
)

// Config holds server configuration.
type Config struct {
	// Server identity, reported on the index route.
	Name    string
	Version string

	Address string
	Port    int

	// Rate limiting for the metrics endpoint. Every scrape shells out to
	// vendor tools, so an aggressive scraper can load the host.
	RateLimit      rate.Limit
	RateLimitBurst int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig derives the server configuration from the exporter
// configuration. The write timeout is generous because a scrape blocks on
// external tool invocations.
func NewConfig(cfg *config.Config, name, version string) *Config {
	return &Config{
		Name:            name,
		Version:         version,
		Address:         cfg.Address,
		Port:            cfg.Port,
		RateLimit:       10,
		RateLimitBurst:  20,
		ReadTimeout:     defaults.ServerReadTimeout,
		WriteTimeout:    defaults.ServerWriteTimeout,
		IdleTimeout:     defaults.ServerIdleTimeout,
		ShutdownTimeout: defaults.ServerShutdownTimeout,
	}
}

// Server is the exporter's HTTP server.
type Server struct {
	config         *Config
	httpServer     *http.Server
	rateLimiter    *rate.Limiter
	metricsHandler http.Handler
	mu             sync.RWMutex
	ready          bool
}

// New creates a server exposing metricsHandler on /metrics.
func New(cfg *Config, metricsHandler http.Handler) *Server {
	s := &Server{
		config:         cfg,
		rateLimiter:    rate.NewLimiter(cfg.RateLimit, cfg.RateLimitBurst),
		metricsHandler: metricsHandler,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      s.setupRoutes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes and middleware.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleDefault)

	// System endpoints, no rate limiting.
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	mux.Handle("/metrics", s.withMiddleware(s.handleMetrics))

	return mux
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed,
			"Method not allowed", false, nil)
		return
	}
	s.metricsHandler.ServeHTTP(w, r)
}

// SetReady marks the server as ready to serve traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.SetReady(true)

	slog.Info("server listening",
		slog.String("address", s.httpServer.Addr),
		slog.Duration("readTimeout", s.config.ReadTimeout),
		slog.Duration("writeTimeout", s.config.WriteTimeout),
		slog.Duration("shutdownTimeout", s.config.ShutdownTimeout))

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// scrapes up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down server")
	return s.httpServer.Shutdown(shutdownCtx)
}
