// Package server wraps the HTTP listener with sane timeouts and graceful
// shutdown.
package server

import (
	"context"
	"net/http"
	"time"
)

// Server represents the engine's HTTP server.
type Server struct {
	srv *http.Server
}

// New creates a server bound to the given port.
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. errCh receives a listener
// failure, if any.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
