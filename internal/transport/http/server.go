// Package http provides the plain HTTP/H2C server used to expose
// operational endpoints such as /metrics. It implements
// transport.Listener.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
)

// MountFunc registers handlers onto the provided ServeMux.
// Accepting *http.ServeMux allows the caller to register multiple services.
type MountFunc func(mux *http.ServeMux) error

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server is an HTTP/H2C server with CORS middleware.
type Server struct {
	inner          *http.Server
	address        string
	listener       net.Listener
	mount          MountFunc
	allowedOrigins []string
	log            *slog.Logger
}

// WithAddress configures the listen address (e.g. ":9090").
func WithAddress(address string) ServerOption {
	return func(s *Server) { s.address = address }
}

// WithListener provides an external net.Listener for the server to
// use. When set, Start will serve on this listener instead of
// creating a new TCP listener from the configured address.
func WithListener(ln net.Listener) ServerOption {
	return func(s *Server) { s.listener = ln }
}

// WithMount configures the function that registers route handlers.
func WithMount(mount MountFunc) ServerOption {
	return func(s *Server) { s.mount = mount }
}

// WithAllowedOrigins configures the allowed origins for CORS.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithHTTPLogger configures a structured logger. Defaults to
// slog.Default with a "component" attribute.
func WithHTTPLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer creates a new HTTP server with the given options. The
// listener is bound here so that address conflicts surface before any
// work starts.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		address: ":9090",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default().With("component", "http-server")
	}
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.address)
		if err != nil {
			return nil, fmt.Errorf("http listen %q: %w", s.address, err)
		}
		s.listener = ln
	}

	handler, err := s.buildHandler()
	if err != nil {
		return nil, err
	}

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	s.inner = &http.Server{
		Addr:              s.address,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		MaxHeaderBytes:    8 * 1024, // 8 KiB
		Protocols:         protocols,
	}

	return s, nil
}

// Handler returns the server's top-level HTTP handler. This is useful
// for testing the middleware chain without starting a real listener.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins accepting connections and blocks until the server is
// shut down or an unrecoverable error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.inner.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	s.log.Info("starting",
		"address", s.listener.Addr().String(),
		"allowed_origins", s.allowedOrigins,
	)

	if err := s.inner.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}

	return nil
}

// Stop gracefully drains connections. If the graceful shutdown
// exceeds the context deadline it forces an immediate close.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down")
	if err := s.inner.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown failed, forcing close", "error", err)
		return s.inner.Close()
	}
	return nil
}

// buildHandler assembles the middleware stack.
// Order: H2C -> CORS -> Mux
func (s *Server) buildHandler() (http.Handler, error) {
	mux := http.NewServeMux()
	if s.mount != nil {
		if err := s.mount(mux); err != nil {
			return nil, fmt.Errorf("mount routes: %w", err)
		}
	}

	return s.wrapCORS(mux), nil
}

// wrapCORS applies CORS headers. When no origins are configured it
// allows all origins; the endpoints served here are read-only.
func (s *Server) wrapCORS(next http.Handler) http.Handler {
	if len(s.allowedOrigins) == 0 {
		return cors.AllowAll().Handler(next)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:         7200,
	})
	return c.Handler(next)
}
