package server

import (
	"github.com/studyhub/studyhub/src/internal/api/handlers"
	echoMiddleware "github.com/studyhub/studyhub/src/internal/api/middleware"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	// Health check
	if s.deps.Health != nil {
		s.echo.GET("/health", handlers.NewHealthHandler(s.deps.Health).Health)
	}

	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echoMiddleware.MetricsHandler(s.deps.Metrics))
	}

	// API v1 routes are rate limited per client
	apiV1 := s.echo.Group("/api/v1", echoMiddleware.RateLimit(s.config))

	handlers.NewSearchHandler(s.deps.Searcher, s.config).RegisterRoutes(apiV1)

	if s.deps.Ingester != nil {
		handlers.NewMaterialHandler(s.deps.Ingester).RegisterRoutes(apiV1)
	}
}
