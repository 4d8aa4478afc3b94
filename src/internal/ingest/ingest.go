// Package ingest extracts text and metadata from uploaded materials and
// stores them where search can see them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/studyhub/studyhub/src/internal/extract"
	"github.com/studyhub/studyhub/src/internal/metadata"
	"github.com/studyhub/studyhub/src/internal/search"
)

// DefaultWorkers is used when Config.Workers is not positive
const DefaultWorkers = 4

// Repository loads ingestion targets and persists results
type Repository interface {
	IngestTarget(ctx context.Context, id uint) (*search.IngestTarget, error)
	SaveExtraction(ctx context.Context, id uint, text string, meta *metadata.Metadata) error
}

// DocumentExtractor is satisfied by *extract.Extractor
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, materialID uint, path, ext string) (*extract.Document, bool)
}

// Invalidator drops cached search responses; *search.Manager implements it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config holds pipeline settings
type Config struct {
	Workers   int
	UploadDir string
}

// Result describes what ingesting one material produced
type Result struct {
	MaterialID  uint     `json:"material_id"`
	Extracted   bool     `json:"extracted"`
	Characters  int      `json:"characters"`
	Pages       int      `json:"pages"`
	AIProcessed bool     `json:"ai_processed"`
	Topics      []string `json:"topics,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
}

// Pipeline runs extraction, metadata enrichment and persistence
type Pipeline struct {
	repo        Repository
	extractor   DocumentExtractor
	meta        metadata.MetadataExtractor
	invalidator Invalidator
	cfg         Config
	logger      *slog.Logger
}

// NewPipeline creates a new ingestion pipeline. meta and invalidator may be nil.
func NewPipeline(repo Repository, extractor DocumentExtractor, meta metadata.MetadataExtractor, invalidator Invalidator, cfg Config, logger *slog.Logger) *Pipeline {
	if meta == nil {
		meta = metadata.NoopExtractor{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		repo:        repo,
		extractor:   extractor,
		meta:        meta,
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logger,
	}
}

// Ingest processes one material and invalidates cached searches.
func (p *Pipeline) Ingest(ctx context.Context, id uint) (*Result, error) {
	result, err := p.ingest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !result.Skipped {
		p.invalidate(ctx)
	}
	return result, nil
}

// IngestMany processes ids on a bounded worker pool. Each material is
// independent: a failure is collected and the rest keep going. Results are
// returned in input order with nil entries for failures.
func (p *Pipeline) IngestMany(ctx context.Context, ids []uint) ([]*Result, error) {
	results := make([]*Result, len(ids))

	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			result, err := p.ingest(ctx, id)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("material %d: %w", id, err))
				mu.Unlock()
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil && !r.Skipped {
			p.invalidate(ctx)
			break
		}
	}

	return results, errors.Join(errs...)
}

func (p *Pipeline) ingest(ctx context.Context, id uint) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := p.repo.IngestTarget(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &Result{MaterialID: id}
	if target.FilePath == "" {
		p.logger.Info("material has no file, skipping ingestion", "material_id", id)
		result.Skipped = true
		return result, nil
	}

	doc, ok := p.extractor.ExtractDocument(ctx, id, p.resolve(target.FilePath), target.FileExtension)

	text := ""
	var meta *metadata.Metadata
	if ok {
		text = doc.NormalizedText
		result.Extracted = true
		result.Characters = len([]rune(text))
		result.Pages = doc.PageCount()

		if p.meta.Enabled() {
			meta, err = p.meta.Extract(ctx, text)
			if err != nil {
				p.logger.Warn("metadata extraction failed", "material_id", id, "error", err)
				meta = nil
			}
		}
	}

	if meta != nil {
		result.AIProcessed = true
		result.Topics = meta.Topics
	}

	if err := p.repo.SaveExtraction(ctx, id, text, meta); err != nil {
		return nil, err
	}

	p.logger.Info("material ingested",
		"material_id", id,
		"extracted", result.Extracted,
		"characters", result.Characters,
		"ai_processed", result.AIProcessed)

	return result, nil
}

func (p *Pipeline) resolve(path string) string {
	if p.cfg.UploadDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.cfg.UploadDir, path)
}

func (p *Pipeline) invalidate(ctx context.Context) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.Invalidate(ctx); err != nil {
		p.logger.Warn("failed to invalidate search cache", "error", err)
	}
}
