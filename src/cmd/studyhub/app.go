package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/studyhub/studyhub/src/internal/cache"
	"github.com/studyhub/studyhub/src/internal/database"
	"github.com/studyhub/studyhub/src/internal/extract"
	"github.com/studyhub/studyhub/src/internal/ingest"
	"github.com/studyhub/studyhub/src/internal/metadata"
	"github.com/studyhub/studyhub/src/internal/metrics"
	"github.com/studyhub/studyhub/src/internal/search"
)

// app holds the wired services shared by the serve, search and ingest commands
type app struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	cache    *cache.CacheManager
	metrics  *metrics.Metrics
	store    *search.GormStore
	search   *search.Manager
	pipeline *ingest.Pipeline
	health   *database.HealthChecker
	logger   *slog.Logger
}

func newApp(cfg *viper.Viper, logger *slog.Logger) (*app, error) {
	if cfg.GetString("database.type") == "sqlite" {
		if err := os.MkdirAll(cfg.GetString("paths.data"), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	a := &app{
		db:      db,
		sqlDB:   sqlDB,
		cache:   cache.NewCacheManager(cfg),
		metrics: metrics.NewMetrics(),
		store:   search.NewGormStore(db),
		health:  database.NewHealthChecker(sqlDB),
		logger:  logger,
	}

	if err := a.metrics.RegisterDB(sqlDB); err != nil {
		logger.Warn("failed to register database metrics", "error", err)
	}

	a.search = search.NewManager(
		search.NewEngine(a.store, logger),
		a.cache,
		cfg.GetDuration("search.cache_ttl"),
		a.metrics,
		logger,
	)

	pipeline, err := a.newPipeline(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.pipeline = pipeline

	return a, nil
}

func (a *app) newPipeline(cfg *viper.Viper) (*ingest.Pipeline, error) {
	reader, err := extract.NewPageReader(cfg.GetString("pdf.license_key"), cfg.GetString("pdf.license_customer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	extractor := extract.NewExtractor(reader, a.metrics, a.logger)

	var meta metadata.MetadataExtractor = metadata.NoopExtractor{}
	if cfg.GetBool("ai.enabled") {
		openaiExtractor, err := metadata.NewOpenAIExtractor(metadata.OpenAIConfig{
			APIKey:   cfg.GetString("ai.api_key"),
			BaseURL:  cfg.GetString("ai.base_url"),
			Model:    cfg.GetString("ai.model"),
			MaxChars: cfg.GetInt("ai.max_chars"),
		}, a.logger)
		if err != nil {
			// Extraction still works without metadata
			a.logger.Warn("AI metadata extraction disabled", "error", err)
		} else {
			retry := metadata.DefaultRetryConfig()
			retry.MaxAttempts = cfg.GetInt("ai.max_attempts")
			breaker := metadata.NewCircuitBreaker(metadata.BreakerConfig{
				FailureThreshold: cfg.GetInt("ai.breaker_failures"),
				RecoveryTimeout:  cfg.GetDuration("ai.breaker_recovery"),
			})
			meta = metadata.NewResilientExtractor(openaiExtractor, retry, breaker, a.logger)
		}
	}

	return ingest.NewPipeline(a.store, extractor, meta, a.search, ingest.Config{
		Workers:   cfg.GetInt("ingest.workers"),
		UploadDir: cfg.GetString("paths.uploads"),
	}, a.logger), nil
}

func (a *app) close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.sqlDB != nil {
		errs = append(errs, a.sqlDB.Close())
	}
	return errors.Join(errs...)
}
