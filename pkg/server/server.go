// Package server provides the operator HTTP server that exposes callmeter's
// metrics and health endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/telemetry/logging"
	"mercator-hq/callmeter/pkg/telemetry/tracing"
)

// ErrAlreadyRunning is returned by Listen when the server is already bound.
var ErrAlreadyRunning = errors.New("server is already running")

// Server is the operator HTTP server.
type Server struct {
	config *config.ServerConfig
	logger *logging.Logger
	mux    *http.ServeMux

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server for cfg. Routes are added with Handle before Start.
func New(cfg *config.ServerConfig, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		config: cfg,
		logger: logger.With("component", "server"),
		mux:    http.NewServeMux(),
	}
}

// Handle registers handler for pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Mux returns the route multiplexer.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux

	// Trace context from the caller
	handler = tracing.HTTPMiddleware(handler)

	handler = RequestIDMiddleware(handler)
	handler = LoggingMiddleware(s.logger)(handler)

	// Recovery middleware (outermost)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

// Listen binds the listen address. Start calls it; tests call it directly
// to learn the bound address before serving.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.isRunning = true
	return nil
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve serves on the bound listener until ctx is cancelled or the server
// fails.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	srv, ln := s.httpServer, s.listener
	s.mu.RUnlock()
	if srv == nil {
		return errors.New("server is not listening")
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting operator server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server within ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv, running := s.httpServer, s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("operator server stopped")
	})

	return shutdownErr
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
