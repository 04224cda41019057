package httputil

import (
	"net/http"
	"time"
)

// Timeouts of the underlying http.Server.
type Timeouts struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

var DefaultTimeouts = Timeouts{
	ReadTimeout:       30 * time.Second,
	ReadHeaderTimeout: 30 * time.Second,
	WriteTimeout:      30 * time.Second,
	IdleTimeout:       120 * time.Second,
}

type config struct {
	// listenAddr is the address to listen on when started.
	listenAddr string
	handler    http.Handler
	timeouts   Timeouts
	httpOpts   []HTTPOption
}

// Option is a general config option.
type Option func(cfg *config)

// HTTPOption applies a change to an HTTP server just before it starts.
// HTTPOptions run again on every restart, for each new http.Server.
type HTTPOption func(srv *http.Server) error

func WithHTTPOptions(options ...HTTPOption) Option {
	return func(cfg *config) {
		cfg.httpOpts = append(cfg.httpOpts, options...)
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(cfg *config) {
		cfg.timeouts = t
	}
}

func WithMaxHeaderBytes(max int) HTTPOption {
	return func(srv *http.Server) error {
		srv.MaxHeaderBytes = max
		return nil
	}
}
