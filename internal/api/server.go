package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pingwatch/internal/config"
)

// Server wraps the http.Server to provide graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer validates addr and configures a server for handler.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if err := config.ValidateHostPort(addr); err != nil {
		return nil, err
	}
	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
			// A submission blocks for up to one probe timeout, which config
			// caps below the write timeout.
			ReadTimeout:  15 * time.Second,
			WriteTimeout: config.ServerWriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Start runs the HTTP server in a new goroutine. The returned channel
// receives the error that stopped the server, if any, and is then closed.
func (s *Server) Start() <-chan error {
	s.logger.Info("starting HTTP server", slog.String("addr", s.httpServer.Addr))
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
