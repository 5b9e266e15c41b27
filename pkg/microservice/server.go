// Package microservice carries the HTTP serving scaffold shared by the
// binaries in cmd: listener lifecycle, liveness and readiness probes, and
// context-aware shutdown.
package microservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const readinessCheckTimeout = 5 * time.Second

// ReadinessCheck probes one backend dependency. A non-nil error marks the
// server not ready.
type ReadinessCheck func(ctx context.Context) error

// Server owns the HTTP listener for a binary. Handlers are registered on its
// mux before Start; probes at /healthz and /readyz are built in.
type Server struct {
	logger     zerolog.Logger
	port       string
	mux        *http.ServeMux
	httpServer *http.Server

	mu         sync.RWMutex
	actualAddr string
	checks     map[string]ReadinessCheck
}

// NewServer creates a server bound to the given port (":8080" style). Port
// ":0" picks a free port, which Addr reports after Start.
func NewServer(logger zerolog.Logger, port string) *Server {
	s := &Server{
		logger: logger.With().Str("component", "httpserver").Logger(),
		port:   port,
		mux:    http.NewServeMux(),
		checks: make(map[string]ReadinessCheck),
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.httpServer = &http.Server{Addr: port, Handler: s.mux}
	return s
}

// Mux returns the mux handlers are registered on.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// AddReadinessCheck registers a named backend probe for /readyz. Register
// checks before Start.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Start binds the listener and serves in a background goroutine. It returns
// once the listener is bound, so a caller reading Addr afterwards sees the
// resolved address.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.port, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.actualAddr).Msg("HTTP server listening.")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed.")
		}
	}()

	return nil
}

// Shutdown drains in-flight requests, bounded by the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server.")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped.")
	return nil
}

// Addr returns the resolved listen address after Start, or the configured
// port before it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actualAddr == "" {
		return s.port
	}
	return s.actualAddr
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReadyz runs every registered check; the first failure makes the
// response a 503 naming the failed dependency.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checks := make(map[string]ReadinessCheck, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
	defer cancel()

	for name, check := range checks {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("Readiness check failed.")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY: " + name))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}
