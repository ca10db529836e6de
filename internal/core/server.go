// Package core provides the API chassis for the CropSight platform. It
// creates the chi router, enforces cross-cutting concerns -- security,
// logging, error handling -- before requests reach domain-specific handlers,
// and owns the standard request/response envelopes.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cropsight/internal/config"
)

// V1RouteRegistrar registers a domain handler's routes on the /v1 group.
// Handlers register themselves via this indirection to avoid import cycles
// between core and the handler packages.
type V1RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the CropSight API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Verifier  *TokenVerifier

	// HealthProbes are checked by GET /health. Registered by main.
	HealthProbes []HealthProbe

	// V1RouteRegistrars populate the /v1 route group. Registered by main.
	V1RouteRegistrars []V1RouteRegistrar

	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. The caller mounts routes (via MountRoutes) after
// construction; this separation lets tests customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Verifier:  NewTokenVerifier(cfg.Auth),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("server shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
