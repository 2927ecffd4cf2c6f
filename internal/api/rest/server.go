package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/config"
	"github.com/accesswatch/accesswatch-backend/internal/metrics"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the server with its routes and middleware chain.
func NewServer(cfg *config.ServerConfig, handler *Handler, registry *metrics.Registry, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	var root http.Handler = mux
	root = recoverMiddleware(logger)(root)
	root = loggingMiddleware(logger, registry)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
