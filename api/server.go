// Package api exposes the course assistant over HTTP.
//
// Endpoints:
//   - GET  /health       - liveness probe
//   - POST /api/query    - answer a question (JSON request/response)
//   - GET  /api/courses  - course catalog analytics
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/rag"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Query answers wait on two model round trips, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// QueryService answers questions and reports catalog analytics.
// Satisfied by *rag.System.
type QueryService interface {
	Query(ctx context.Context, text, sessionID string) (rag.Answer, error)
	Stats() (int, []string)
}

// Server is the HTTP server for the course assistant API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health  *HealthHandler
	query   *QueryHandler
	courses *CoursesHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(svc QueryService, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(svc, logger),
		query:   NewQueryHandler(svc, logger),
		courses: NewCoursesHandler(svc, logger),
	}

	s.health.RegisterRoutes(mux)
	s.query.RegisterRoutes(mux)
	s.courses.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
