package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// HTTPServer wraps a http.Server and exposes whether it runs and where.
//
// The listen address may use port 0 to bind any free port; Addr and HTTPEndpoint report the
// actual address once started. The server can be stopped and started again.
type HTTPServer struct {
	// mu guards bringing the server up or down, and the listener.
	mu sync.RWMutex

	listener  net.Listener
	srv       *http.Server
	srvCancel context.CancelFunc

	config *config
}

// NewHTTPServer creates an HTTPServer that serves the handler. It has to be started explicitly.
func NewHTTPServer(addr string, handler http.Handler, opts ...Option) *HTTPServer {
	cfg := &config{listenAddr: addr, handler: handler, timeouts: DefaultTimeouts}
	for _, opt := range opts {
		opt(cfg)
	}
	return &HTTPServer{config: cfg}
}

func StartHTTPServer(addr string, handler http.Handler, opts ...Option) (*HTTPServer, error) {
	out := NewHTTPServer(addr, handler, opts...)
	return out, out.Start()
}

// Start binds the listener and serves in the background. It fails if the server does not stay
// up for a short moment.
func (s *HTTPServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("already have existing server")
	}

	srvCtx, srvCancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.config.handler,
		ReadTimeout:       s.config.timeouts.ReadTimeout,
		ReadHeaderTimeout: s.config.timeouts.ReadHeaderTimeout,
		WriteTimeout:      s.config.timeouts.WriteTimeout,
		IdleTimeout:       s.config.timeouts.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return srvCtx },
	}
	for _, opt := range s.config.httpOpts {
		if err := opt(srv); err != nil {
			srvCancel()
			return fmt.Errorf("failed to apply HTTP option: %w", err)
		}
	}

	listener, err := net.Listen("tcp", s.config.listenAddr)
	if err != nil {
		srvCancel()
		return fmt.Errorf("failed to bind to address %q: %w", s.config.listenAddr, err)
	}
	s.listener = listener
	s.srv = srv
	s.srvCancel = srvCancel

	// buffered, so a late failure does not block the serving goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	standup := time.NewTimer(10 * time.Millisecond)
	defer standup.Stop()
	select {
	case err := <-errCh:
		s.cleanup()
		return fmt.Errorf("http server failed: %w", err)
	case <-standup.C:
		return nil
	}
}

func (s *HTTPServer) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.srv == nil
}

// Stop shuts the server down gracefully, and force-closes it if ctx ends first.
// The ctx error is not returned when the force-close succeeds.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if err := s.Shutdown(ctx); err != nil {
		if errors.Is(err, ctx.Err()) {
			return s.Close()
		}
		return err
	}
	return nil
}

func (s *HTTPServer) cleanup() {
	s.srv = nil
	s.listener = nil
	s.srvCancel = nil
}

// Shutdown closes the listener and waits for active connections to finish.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	s.srvCancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	s.cleanup()
	return nil
}

// Close force-closes the listener and all active connections.
func (s *HTTPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	s.srvCancel()
	if err := s.srv.Close(); err != nil {
		return err
	}
	s.cleanup()
	return nil
}

// Addr returns the address the server listens on, or nil if it is not running.
func (s *HTTPServer) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *HTTPServer) Port() (int, error) {
	addr := s.Addr()
	if addr == nil {
		return 0, errors.New("server not running")
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, fmt.Errorf("failed to extract port from server: %w", err)
	}
	return strconv.Atoi(portStr)
}

// HTTPEndpoint returns the http endpoint the server serves, or an empty string if it is not running.
func (s *HTTPServer) HTTPEndpoint() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	return "http://" + addr.String()
}
