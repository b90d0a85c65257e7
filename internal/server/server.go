// Package server is the HTTP upload front end: it accepts a formulary, an
// invoice and an optional price table, runs the reconciliation and serves the
// resulting files.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Veraticus/rxsync/internal/certs"
	"github.com/Veraticus/rxsync/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the HTTP server.
type Server struct {
	started time.Time
	server  *http.Server
	router  chi.Router
	limiter *RateLimiter
	metrics *Metrics
	janitor *Janitor
	cfg     config.Config
	runs    int
	runMu   sync.Mutex // serializes pipeline runs
}

// New creates a server instance from cfg.
func New(cfg config.Config) *Server {
	router := chi.NewRouter()

	s := &Server{
		started: time.Now(),
		server: &http.Server{
			Handler:           router,
			Addr:              cfg.Server.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       2 * time.Minute,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
		router:  router,
		limiter: NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		metrics: NewMetrics(),
		cfg:     cfg,
	}
	s.limiter.onReject = s.metrics.RateLimitedTotal.Inc
	if cfg.Server.Retention > 0 {
		s.janitor = NewJanitor(cfg.Server.UploadDir, cfg.Server.Retention, &s.runMu)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.limiter.Middleware)
}

func (s *Server) setupRoutes() {
	s.router.Post("/upload", s.handleUpload)
	s.router.Get("/runs/{id}/{file}", s.handleDownload)
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. With TLS enabled the certificate is
// loaded, or issued, from the configured certificate directory first.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Server.TLS {
		tlsConfig, err := s.tlsConfig()
		if err != nil {
			return err
		}
		s.server.TLSConfig = tlsConfig
	}

	s.limiter.Cleanup(ctx, 10*time.Minute)
	if s.janitor != nil {
		if err := s.janitor.Start(s.cfg.Server.PruneInterval); err != nil {
			return err
		}
	}

	slog.Info("Starting server",
		"addr", s.cfg.Server.Addr,
		"tls", s.cfg.Server.TLS,
		"upload_dir", s.cfg.Server.UploadDir)

	var err error
	if s.server.TLSConfig != nil {
		err = s.server.ListenAndServeTLS("", "")
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	hosts := s.cfg.Server.TLSHosts
	if host, _, err := net.SplitHostPort(s.cfg.Server.Addr); err == nil && host != "" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsUnspecified() {
			hosts = append(hosts, host)
		}
	}

	cert, err := certs.NewStore(s.cfg.Server.CertDir, hosts...).Certificate()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down server...")
	if s.janitor != nil {
		s.janitor.Stop()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("server close: %w", err)
		}
	}

	slog.Info("Server shutdown complete")
	return nil
}
