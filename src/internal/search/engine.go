package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Engine runs material searches against a MaterialStore. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	store  MaterialStore
	logger *slog.Logger
}

// NewEngine creates a new search engine
func NewEngine(store MaterialStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// Search filters, ranks, truncates and projects materials matching q.
// An empty term yields no results without consulting the store.
func (e *Engine) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return []SearchResult{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	candidates, err := e.store.Candidates(ctx, CandidateFilter{
		Term:         term,
		CourseID:     q.CourseID,
		MaterialType: q.MaterialType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load search candidates: %w", err)
	}

	matched := filter(candidates, term, q)
	Rank(matched, term, q.SortBy)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	results := make([]SearchResult, 0, len(matched))
	for i := range matched {
		m := &matched[i]
		matchType, snippet := Highlight(m, term)
		results = append(results, SearchResult{
			MaterialID:       m.ID,
			Title:            m.Title,
			MaterialType:     m.MaterialType,
			CourseName:       m.CourseName,
			CourseID:         m.CourseID,
			UploaderUsername: m.UploaderUsername,
			Snippet:          snippet,
			MatchType:        matchType,
			CreatedAt:        m.CreatedAt,
		})
	}

	e.logger.Debug("search completed",
		"term", term,
		"candidates", len(candidates),
		"results", len(results),
		"sort_by", string(q.SortBy))

	return results, nil
}

func filter(candidates []SearchableMaterial, term string, q SearchQuery) []SearchableMaterial {
	out := make([]SearchableMaterial, 0, len(candidates))
	for i := range candidates {
		m := &candidates[i]
		if q.CourseID != nil && m.CourseID != *q.CourseID {
			continue
		}
		if q.MaterialType != nil && m.MaterialType != *q.MaterialType {
			continue
		}
		if !Matches(m, term) {
			continue
		}
		out = append(out, *m)
	}
	return out
}
