package rest

import (
	"context"
	"fmt"
	"net/http"

	"estate-parser-service/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP ops server for the service.
type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

func newRouter(handlers *OpsHandlers, baseLogger port.LoggerPort) chi.Router {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware(baseLogger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HandleHealth)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/latest", handlers.HandleLatestRun)
		})
		r.Get("/blocks", handlers.HandleRecentBlocks)
	})

	return r
}

// NewServer builds the ops server on the given port.
func NewServer(port string, handlers *OpsHandlers, baseLogger port.LoggerPort) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: newRouter(handlers, baseLogger),
		},
		logger: baseLogger,
	}
}

// Start serves until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
