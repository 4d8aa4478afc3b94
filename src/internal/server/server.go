package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/studyhub/studyhub/src/internal/api/handlers"
	echoMiddleware "github.com/studyhub/studyhub/src/internal/api/middleware"
	apperrors "github.com/studyhub/studyhub/src/internal/errors"
	"github.com/studyhub/studyhub/src/internal/metrics"
)

// Deps are the services the HTTP layer serves. Ingester and Metrics may be nil.
type Deps struct {
	Searcher handlers.Searcher
	Ingester handlers.Ingester
	Health   handlers.HealthChecker
	Metrics  *metrics.Metrics
}

// Server represents the main application server
type Server struct {
	echo      *echo.Echo
	config    *viper.Viper
	logger    *slog.Logger
	deps      Deps
	accessLog io.WriteCloser
}

// New creates a new server with middleware and routes installed
func New(cfg *viper.Viper, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewEchoValidator()
	e.HTTPErrorHandler = apperrors.NewErrorHandler(cfg, logger).HTTPErrorHandler

	s := &Server{
		echo:   e,
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Echo returns the underlying echo instance
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be used directly as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves on address until Shutdown is called
func (s *Server) Start(address string) error {
	s.logger.Info("server listening", "address", address)
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if s.accessLog != nil {
		if closeErr := s.accessLog.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *Server) setupMiddleware() {
	errHandler := apperrors.NewErrorHandler(s.config, s.logger)
	s.echo.Use(errHandler.RecoverMiddleware())

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.logger.Info("request", attrs...)
			return nil
		},
	}))

	// Apache format to access.log when configured
	if path := s.config.GetString("log.access_file"); path != "" {
		if w, err := openAccessLog(path); err != nil {
			s.logger.Warn("failed to open access log", "path", path, "error", err)
		} else {
			s.accessLog = w
			s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
				Format:           `${remote_ip} - - [${time_custom}] "${method} ${uri} ${protocol}" ${status} ${bytes_out}` + "\n",
				CustomTimeFormat: "02/Jan/2006:15:04:05 -0700",
				Output:           w,
			}))
		}
	}

	if s.deps.Metrics != nil {
		s.echo.Use(echoMiddleware.MetricsMiddleware(s.deps.Metrics))
	}

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	s.echo.Use(echoMiddleware.CORS(s.config))
	s.echo.Use(echoMiddleware.Security(s.config))
	s.echo.Use(echoMiddleware.CacheControl(s.config.GetDuration("search.cache_ttl")))
}

func openAccessLog(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
