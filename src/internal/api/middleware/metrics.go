package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/studyhub/studyhub/src/internal/errors"
	"github.com/studyhub/studyhub/src/internal/metrics"
)

// MetricsMiddleware creates middleware for collecting HTTP metrics
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				var ce *apperrors.CustomError
				switch {
				case errors.As(err, &he):
					status = he.Code
				case errors.As(err, &ce):
					status = ce.StatusCode
				default:
					status = http.StatusInternalServerError
				}
			}

			// Route template keeps label cardinality bounded
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			m.RequestMetrics(c.Request().Method, path, status, duration)

			return err
		}
	}
}

// MetricsHandler provides the Prometheus metrics endpoint
func MetricsHandler(m *metrics.Metrics) echo.HandlerFunc {
	return echo.WrapHandler(m.Handler())
}
