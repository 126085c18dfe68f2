// Package server implements the migration status HTTP server.
package server

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// StatusSource provides the live migration snapshot.
type StatusSource interface {
	Status() types.StatusReport
}

// Pinger reports whether the checkpoint store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the read-only HTTP surface for operators: health, migration
// status, and expvar counters.
type Server struct {
	status StatusSource
	pinger Pinger
	router chi.Router
	addr   string
	logger *slog.Logger
	srv    *http.Server
}

// New creates a new status server.
func New(addr string, status StatusSource, pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		status: status,
		pinger: pinger,
		addr:   addr,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)

	s.router = r
	s.registerRoutes(r)
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("status server listening", "addr", s.addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
	})
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())
}
