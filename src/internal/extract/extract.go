// Package extract turns uploaded documents into searchable plain text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyhub/studyhub/src/internal/rtl"
)

// Extraction outcomes reported to the Recorder
const (
	OutcomeSuccess     = "success"
	OutcomeEmpty       = "empty"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

// PageReader returns the raw text of every page of a document, in page order.
type PageReader interface {
	ReadPages(ctx context.Context, path string) ([]string, error)
}

// Recorder receives one outcome per extraction attempt.
type Recorder interface {
	ObserveExtraction(outcome string)
}

// Document is the result of a successful extraction
type Document struct {
	MaterialID     uint
	RawPages       []string
	NormalizedText string
}

// PageCount returns the number of pages read, blank ones included.
func (d *Document) PageCount() int {
	return len(d.RawPages)
}

// Extractor extracts and normalizes document text. Failures never escape:
// they are logged and reported as "no text".
type Extractor struct {
	reader   PageReader
	recorder Recorder
	logger   *slog.Logger
}

// NewExtractor creates a new extractor. recorder may be nil.
func NewExtractor(reader PageReader, recorder Recorder, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		reader:   reader,
		recorder: recorder,
		logger:   logger,
	}
}

// Supported reports whether ext names a format the extractor can read.
func Supported(ext string) bool {
	return strings.ToLower(ext) == ".pdf"
}

// ExtractFileText returns the normalized text of the file at path, or
// ("", false) when the format is unsupported, nothing was extracted or
// anything went wrong.
func (e *Extractor) ExtractFileText(ctx context.Context, path, ext string) (string, bool) {
	doc, ok := e.ExtractDocument(ctx, 0, path, ext)
	if !ok {
		return "", false
	}
	return doc.NormalizedText, true
}

// ExtractDocument is ExtractFileText keeping the raw pages.
func (e *Extractor) ExtractDocument(ctx context.Context, materialID uint, path, ext string) (doc *Document, ok bool) {
	ext = strings.ToLower(ext)
	if !Supported(ext) {
		e.logger.Info("text extraction not supported for file type", "extension", ext, "path", path)
		e.observe(OutcomeUnsupported)
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("pdf extraction panicked", "path", path, "panic", fmt.Sprint(r))
			e.observe(OutcomeFailed)
			doc, ok = nil, false
		}
	}()

	pages, err := e.reader.ReadPages(ctx, path)
	if err != nil {
		e.logger.Warn("failed to extract text from pdf", "path", path, "error", err)
		e.observe(OutcomeFailed)
		return nil, false
	}

	text := JoinPages(pages)
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("no text extracted from pdf", "path", path)
		e.observe(OutcomeEmpty)
		return nil, false
	}

	normalized := rtl.FixDirection(text)
	e.logger.Info("extracted document text",
		"path", path,
		"pages", len(pages),
		"characters", len([]rune(normalized)))
	e.observe(OutcomeSuccess)

	return &Document{
		MaterialID:     materialID,
		RawPages:       pages,
		NormalizedText: normalized,
	}, true
}

// JoinPages concatenates non-empty pages with a newline.
func JoinPages(pages []string) string {
	nonEmpty := make([]string, 0, len(pages))
	for _, p := range pages {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

func (e *Extractor) observe(outcome string) {
	if e.recorder != nil {
		e.recorder.ObserveExtraction(outcome)
	}
}
