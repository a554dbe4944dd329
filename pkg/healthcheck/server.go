// Package healthcheck provides the HTTP server for health checks and metrics.
package healthcheck

import (
	"context"
	"net/http"
	"time"
)

// Server serves /health and, when configured, /metrics.
type Server struct {
	server *http.Server
}

type options struct {
	metrics http.Handler
	check   func() error
}

// Option configures the server.
type Option func(*options)

// WithMetrics exposes h under /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// WithCheck makes /health fail with 503 while check returns an error.
func WithCheck(check func() error) Option {
	return func(o *options) { o.check = check }
}

// Handler builds the mux without starting a listener.
func Handler(opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mux := http.NewServeMux()

	// Minimal response, no allocations
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if o.check != nil {
			if err := o.check(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if o.metrics != nil {
		mux.Handle("/metrics", o.metrics)
	}
	return mux
}

// New creates a health check server listening on addr.
func New(addr string, opts ...Option) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(opts...),
			ReadTimeout:       2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 1 * time.Second,
			MaxHeaderBytes:    1 << 10, // 1KB
		},
	}
}

// Start starts the server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
