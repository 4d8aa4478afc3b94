package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/studyhub/src/internal/database"
	apperrors "github.com/studyhub/studyhub/src/internal/errors"
	"github.com/studyhub/studyhub/src/internal/ingest"
	"github.com/studyhub/studyhub/src/internal/metrics"
	"github.com/studyhub/studyhub/src/internal/search"
)

type fakeSearcher struct {
	last search.SearchQuery
}

func (f *fakeSearcher) Search(ctx context.Context, rawQuery string, q search.SearchQuery) (*search.SearchResponse, error) {
	f.last = q
	return &search.SearchResponse{Query: rawQuery, Results: []search.SearchResult{}, TotalResults: 0}, nil
}

type fakeIngester struct{}

func (fakeIngester) Ingest(ctx context.Context, id uint) (*ingest.Result, error) {
	if id == 404 {
		return nil, search.ErrMaterialNotFound
	}
	return &ingest.Result{MaterialID: id}, nil
}

type fakeHealth struct {
	err error
}

func (f fakeHealth) Check(ctx context.Context) error { return f.err }

func (f fakeHealth) Result() database.HealthCheckResult {
	return database.HealthCheckResult{Healthy: f.err == nil}
}

func testConfig() *viper.Viper {
	cfg := viper.New()
	cfg.Set("search.default_limit", 5)
	cfg.Set("search.max_limit", 20)
	cfg.Set("ratelimit.per_minute", 600)
	cfg.Set("cors.allowed_origins", []string{"http://localhost:5173"})
	return cfg
}

func do(s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServerRoutes(t *testing.T) {
	searcher := &fakeSearcher{}
	s := New(testConfig(), nil, Deps{
		Searcher: searcher,
		Ingester: fakeIngester{},
		Health:   fakeHealth{},
		Metrics:  metrics.NewMetrics(),
	})

	t.Run("Health", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("Search", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/search/materials?q=derivatives&sort_by=date&limit=7", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"query":"derivatives","results":[],"total_results":0}`, rec.Body.String())
		assert.Equal(t, search.SortDate, searcher.last.SortBy)
		assert.Equal(t, 7, searcher.last.Limit)
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/search/materials?q=x", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, searcher.last.Limit)
		assert.Nil(t, searcher.last.CourseID)
		assert.Nil(t, searcher.last.MaterialType)
	})

	t.Run("ValidationError", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/search/materials?q=x&limit=50", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp apperrors.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	})

	t.Run("Reindex", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/api/v1/materials/3/reindex", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(s, http.MethodPost, "/api/v1/materials/404/reindex", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/gists", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	})

	t.Run("PublicSearchAnyOrigin", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/search/materials?q=x", map[string]string{"Origin": "https://elsewhere.example"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://elsewhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("SecurityHeaders", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/health", nil)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `studyhub_http_requests_total{method="GET",path="/api/v1/search/materials",status="200"}`)
	})
}

func TestServerUnhealthy(t *testing.T) {
	s := New(testConfig(), nil, Deps{
		Searcher: &fakeSearcher{},
		Health:   fakeHealth{err: errors.New("connection refused")},
	})

	rec := do(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// metrics and reindex are optional
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/api/v1/materials/1/reindex", nil).Code)
}

func TestServerRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Set("ratelimit.per_minute", 1)
	s := New(cfg, nil, Deps{Searcher: &fakeSearcher{}, Health: fakeHealth{}})

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/search/materials?q=x", nil).Code)

	rec := do(s, http.MethodGet, "/api/v1/search/materials?q=x", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health is not rate limited
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", nil).Code)
}

func TestServerAccessLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "access.log")
	cfg := testConfig()
	cfg.Set("log.access_file", path)

	s := New(cfg, nil, Deps{Searcher: &fakeSearcher{}, Health: fakeHealth{}})
	do(s, http.MethodGet, "/health", nil)
	require.NoError(t, s.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"GET /health HTTP/1.1" 200`)
}
