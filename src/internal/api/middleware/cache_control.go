package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// CacheControl adds cache headers. Public searches may be cached by clients
// for searchTTL, the same time the server caches them; everything else under
// /api/ is never cached.
func CacheControl(searchTTL time.Duration) echo.MiddlewareFunc {
	searchPolicy := "no-cache"
	if seconds := int(searchTTL / time.Second); seconds > 0 {
		searchPolicy = fmt.Sprintf("public, max-age=%d", seconds)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			header := c.Response().Header()

			switch {
			case c.Request().Method == http.MethodGet && path == "/api/v1/search/materials":
				header.Set("Cache-Control", searchPolicy)
			case strings.HasPrefix(path, "/api/"), path == "/health", path == "/metrics":
				header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			}

			return next(c)
		}
	}
}
