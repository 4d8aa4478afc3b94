package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studyhub/studyhub/src/internal/config"
	"github.com/studyhub/studyhub/src/internal/database"
)

// HealthChecker is satisfied by *database.HealthChecker
type HealthChecker interface {
	Check(ctx context.Context) error
	Result() database.HealthCheckResult
}

// HealthHandler reports service and database health
type HealthHandler struct {
	checker   HealthChecker
	startTime time.Time
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string                     `json:"status"`
	Version  string                     `json:"version"`
	Uptime   string                     `json:"uptime"`
	Database database.HealthCheckResult `json:"database"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker:   checker,
		startTime: time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	status := http.StatusOK
	resp := HealthResponse{
		Status:  "healthy",
		Version: config.Version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	}

	if err := h.checker.Check(c.Request().Context()); err != nil {
		status = http.StatusServiceUnavailable
		resp.Status = "unhealthy"
	}
	resp.Database = h.checker.Result()

	return c.JSON(status, resp)
}
