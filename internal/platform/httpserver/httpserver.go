// Package httpserver wraps the process HTTP server with the timeouts and
// shutdown behavior every verigate deployment uses.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Server runs an HTTP listener and shuts it down gracefully when the
// process context is canceled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// New builds a server on addr with sane defaults for this project.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is canceled, then drains in-flight requests within
// the shutdown timeout. A listener failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
