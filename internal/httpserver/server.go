// Package httpserver runs an http.Server bound to a context: Start listens,
// serves until the context ends, then shuts down gracefully.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittovec/internal/logger"
)

// GracePeriod bounds the shutdown that follows context cancellation.
const GracePeriod = 5 * time.Second

type Server struct {
	name string
	srv  *http.Server

	ready chan struct{}
	mu    sync.Mutex
	addr  net.Addr

	stopOnce sync.Once
	stopErr  error
}

// New wraps srv. name labels log lines and errors, e.g. "API".
func New(name string, srv *http.Server) *Server {
	return &Server{name: name, srv: srv, ready: make(chan struct{})}
}

// Start binds the listener, so an address in use fails here rather than in
// the background, then serves until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s server: %w", s.name, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)
	logger.Info(s.name+" server listening", "addr", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), GracePeriod)
		defer cancel()
		return s.Stop(stopCtx)
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts down within ctx. Later calls return the first result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("%s server shutdown: %w", s.name, err)
			logger.Error(s.name+" server shutdown error", logger.Err(err))
			return
		}
		logger.Info(s.name + " server stopped")
	})
	return s.stopErr
}

// Handler returns the wrapped handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
