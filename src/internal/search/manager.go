package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/studyhub/studyhub/src/internal/cache"
)

// Recorder receives search observations; metrics.Metrics implements it.
type Recorder interface {
	ObserveSearch(sortBy string, results int, duration time.Duration)
}

// Manager fronts the Engine with a response cache and metrics. Identical
// searches that miss the cache at the same time share one engine run.
type Manager struct {
	engine   *Engine
	cache    *cache.CacheManager
	ttl      time.Duration
	recorder Recorder
	logger   *slog.Logger
	inflight singleflight.Group
}

// NewManager creates a new search manager. cacheManager and recorder may be nil.
func NewManager(engine *Engine, cacheManager *cache.CacheManager, ttl time.Duration, recorder Recorder, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = cache.TTLShort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		engine:   engine,
		cache:    cacheManager,
		ttl:      ttl,
		recorder: recorder,
		logger:   logger,
	}
}

// Search runs q and wraps the results in a SearchResponse echoing rawQuery.
func (m *Manager) Search(ctx context.Context, rawQuery string, q SearchQuery) (*SearchResponse, error) {
	start := time.Now()
	if q.SortBy == "" {
		q.SortBy = SortRelevance
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	key := cacheKey(q)
	if m.cache.Enabled() {
		var cached SearchResponse
		if err := m.cache.GetJSON(ctx, key, &cached); err == nil {
			cached.Query = rawQuery
			m.observe(q, cached.TotalResults, start)
			return &cached, nil
		}
	}

	// The shared run is detached from any one caller's cancellation.
	ch := m.inflight.DoChan(key, func() (interface{}, error) {
		return m.engine.Search(context.WithoutCancel(ctx), q)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	results := res.Val.([]SearchResult)
	if res.Shared {
		m.logger.Debug("search coalesced", "key", key)
	}

	resp := &SearchResponse{
		Query:        rawQuery,
		Results:      results,
		TotalResults: len(results),
	}

	if m.cache.Enabled() {
		if err := m.cache.SetJSON(ctx, key, resp, m.ttl); err != nil {
			m.logger.Warn("failed to cache search response", "error", err)
		}
	}

	m.observe(q, resp.TotalResults, start)
	return resp, nil
}

// Invalidate drops every cached search response. Ingestion calls it after
// material text changes.
func (m *Manager) Invalidate(ctx context.Context) error {
	if !m.cache.Enabled() {
		return nil
	}
	return m.cache.DeletePattern(ctx, cache.CacheKeySearchPattern)
}

func (m *Manager) observe(q SearchQuery, results int, start time.Time) {
	if m.recorder != nil {
		m.recorder.ObserveSearch(string(q.SortBy), results, time.Since(start))
	}
}

// cacheKey creates a cache key from the normalized query
func cacheKey(q SearchQuery) string {
	key := fmt.Sprintf("q=%s:limit=%d:sort=%s", strings.ToLower(strings.TrimSpace(q.Term)), q.Limit, q.SortBy)

	if q.CourseID != nil {
		key += fmt.Sprintf(":course=%d", *q.CourseID)
	}

	if q.MaterialType != nil {
		key += fmt.Sprintf(":type=%s", *q.MaterialType)
	}

	return cache.SearchKey(key)
}
