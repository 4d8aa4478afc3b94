// Package testsuite runs the full HTTP stack against a temporary SQLite
// database for integration tests.
package testsuite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/studyhub/studyhub/src/internal/cache"
	"github.com/studyhub/studyhub/src/internal/database"
	"github.com/studyhub/studyhub/src/internal/database/models"
	"github.com/studyhub/studyhub/src/internal/extract"
	"github.com/studyhub/studyhub/src/internal/ingest"
	"github.com/studyhub/studyhub/src/internal/metadata"
	"github.com/studyhub/studyhub/src/internal/metrics"
	"github.com/studyhub/studyhub/src/internal/search"
	"github.com/studyhub/studyhub/src/internal/server"
)

// TestSuite wires the server, search and ingestion over a real database
type TestSuite struct {
	suite.Suite

	// Core components
	DB         *gorm.DB
	Config     *viper.Viper
	Server     *server.Server
	TestServer *httptest.Server
	Search     *search.Manager
	Pipeline   *ingest.Pipeline
	Metrics    *metrics.Metrics

	// Test utilities
	TempDir   string
	Pages     *StubPageReader
	Metadata  *StubMetadata
	TestData  *TestDataManager
	APIClient *APITestClient

	cleanupFuncs []func()
	mu           sync.Mutex
}

// SetupSuite initializes the test suite
func (s *TestSuite) SetupSuite() {
	s.TempDir = s.T().TempDir()

	s.setupConfig()
	s.setupDatabase()
	s.setupServices()
	s.setupServer()
	s.setupTestUtilities()
}

// TearDownSuite cleans up the test suite
func (s *TestSuite) TearDownSuite() {
	s.mu.Lock()
	cleanupFuncs := make([]func(), len(s.cleanupFuncs))
	copy(cleanupFuncs, s.cleanupFuncs)
	s.mu.Unlock()

	for i := len(cleanupFuncs) - 1; i >= 0; i-- {
		cleanupFuncs[i]()
	}
}

// SetupTest runs before each test
func (s *TestSuite) SetupTest() {
	s.TestData.CleanupAll()
	s.Pages.Reset()
	s.Metadata.Reset()
	require.NoError(s.T(), s.Search.Invalidate(context.Background()))
}

// AddCleanup adds a cleanup function to be called during teardown
func (s *TestSuite) AddCleanup(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupFuncs = append(s.cleanupFuncs, fn)
}

// setupConfig initializes test configuration
func (s *TestSuite) setupConfig() {
	config := viper.New()
	config.Set("database.type", "sqlite")
	config.Set("database.dsn", filepath.Join(s.TempDir, "studyhub-test.db"))
	config.Set("paths.uploads", filepath.Join(s.TempDir, "uploads"))
	config.Set("cache.enabled", true)
	config.Set("cache.key_prefix", "studyhub-test:")
	config.Set("search.default_limit", search.DefaultLimit)
	config.Set("search.max_limit", search.MaxLimit)
	config.Set("search.cache_ttl", time.Minute)
	config.Set("ratelimit.per_minute", 100000)
	config.Set("cors.allowed_origins", []string{"http://localhost:5173"})
	config.Set("debug", true)

	s.Config = config
}

// setupDatabase opens the database and applies the SQL migrations
func (s *TestSuite) setupDatabase() {
	db, err := database.Initialize(s.Config)
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.RunMigrations(db, "sqlite", nil))

	s.DB = db
	s.AddCleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
}

func (s *TestSuite) setupServices() {
	s.Metrics = metrics.NewMetrics()
	s.Pages = NewStubPageReader()
	s.Metadata = &StubMetadata{}

	store := search.NewGormStore(s.DB)
	cacheManager := cache.NewMemoryCacheManager(s.Config.GetString("cache.key_prefix"))
	s.AddCleanup(func() { cacheManager.Close() })

	s.Search = search.NewManager(search.NewEngine(store, nil), cacheManager,
		s.Config.GetDuration("search.cache_ttl"), s.Metrics, nil)

	extractor := extract.NewExtractor(s.Pages, s.Metrics, nil)
	s.Pipeline = ingest.NewPipeline(store, extractor, s.Metadata, s.Search, ingest.Config{
		Workers:   2,
		UploadDir: s.Config.GetString("paths.uploads"),
	}, nil)
}

// setupServer starts an httptest server in front of the application
func (s *TestSuite) setupServer() {
	srv := server.New(s.Config, nil, server.Deps{
		Searcher: s.Search,
		Ingester: s.Pipeline,
		Health:   database.NewHealthChecker(mustSQLDB(s.T(), s.DB)),
		Metrics:  s.Metrics,
	})
	testServer := httptest.NewServer(srv)

	s.Server = srv
	s.TestServer = testServer
	s.AddCleanup(testServer.Close)
}

// setupTestUtilities initializes test utilities
func (s *TestSuite) setupTestUtilities() {
	s.TestData = &TestDataManager{db: s.DB}
	s.APIClient = &APITestClient{
		baseURL:    s.TestServer.URL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func mustSQLDB(t *testing.T, db *gorm.DB) *sql.DB {
	sqlDB, err := db.DB()
	require.NoError(t, err)
	return sqlDB
}

// StubPageReader serves page text registered per file name instead of
// parsing PDFs.
type StubPageReader struct {
	pages map[string][]string
	mu    sync.Mutex
}

// NewStubPageReader creates an empty reader
func NewStubPageReader() *StubPageReader {
	return &StubPageReader{pages: make(map[string][]string)}
}

// Set registers the pages returned for files named name
func (r *StubPageReader) Set(name string, pages ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[name] = pages
}

// Reset forgets every registered file
func (r *StubPageReader) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = make(map[string][]string)
}

// ReadPages implements extract.PageReader
func (r *StubPageReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pages, ok := r.pages[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return pages, nil
}

// StubMetadata returns fixed metadata when Result is set
type StubMetadata struct {
	Result *metadata.Metadata
	Err    error
}

// Reset disables the stub
func (m *StubMetadata) Reset() {
	m.Result = nil
	m.Err = nil
}

// Enabled reports whether a result or error is configured
func (m *StubMetadata) Enabled() bool { return m.Result != nil || m.Err != nil }

// Extract returns the configured result
func (m *StubMetadata) Extract(ctx context.Context, text string) (*metadata.Metadata, error) {
	return m.Result, m.Err
}

// TestDataManager creates and removes test records
type TestDataManager struct {
	db *gorm.DB
}

// CreateUser creates an uploader
func (tm *TestDataManager) CreateUser(t *testing.T, username string) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		IsActive: true,
	}
	require.NoError(t, tm.db.Create(user).Error)
	return user
}

// CreateCourse creates a course
func (tm *TestDataManager) CreateCourse(t *testing.T, number, name string) *models.Course {
	course := &models.Course{CourseNumber: number, CourseName: name}
	require.NoError(t, tm.db.Create(course).Error)
	return course
}

// CreateMaterial inserts material after filling in defaults
func (tm *TestDataManager) CreateMaterial(t *testing.T, material *models.Material) *models.Material {
	if material.MaterialType == "" {
		material.MaterialType = models.MaterialTypeOther
	}
	require.NoError(t, tm.db.Create(material).Error)
	return material
}

// Material reloads a material by id
func (tm *TestDataManager) Material(t *testing.T, id uint) *models.Material {
	var material models.Material
	require.NoError(t, tm.db.First(&material, id).Error)
	return &material
}

// CleanupAll removes all test data
func (tm *TestDataManager) CleanupAll() {
	tm.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Material{})
	tm.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Course{})
	tm.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{})
}

// APITestClient performs requests against the test server
type APITestClient struct {
	baseURL    string
	httpClient *http.Client
}

// GET performs a GET request
func (c *APITestClient) GET(path string) (*http.Response, error) {
	return c.request(http.MethodGet, path, nil, nil)
}

// GETWithHeaders performs a GET request with extra headers
func (c *APITestClient) GETWithHeaders(path string, headers map[string]string) (*http.Response, error) {
	return c.request(http.MethodGet, path, nil, headers)
}

// POST performs a POST request
func (c *APITestClient) POST(path string, data interface{}) (*http.Response, error) {
	return c.request(http.MethodPost, path, data, nil)
}

func (c *APITestClient) request(method, path string, data interface{}, headers map[string]string) (*http.Response, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

// GetJSON gets and unmarshals JSON response
func (c *APITestClient) GetJSON(path string, target interface{}) error {
	resp, err := c.GET(path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s - %s", resp.StatusCode, resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// PostJSON posts JSON and unmarshals response
func (c *APITestClient) PostJSON(path string, data interface{}, target interface{}) error {
	resp, err := c.POST(path, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s - %s", resp.StatusCode, resp.Status, string(body))
	}

	if target != nil {
		return json.NewDecoder(resp.Body).Decode(target)
	}
	return nil
}

// SearchMaterials runs a material search through the HTTP API
func (s *TestSuite) SearchMaterials(query string) *search.SearchResponse {
	var resp search.SearchResponse
	require.NoError(s.T(), s.APIClient.GetJSON("/api/v1/search/materials?"+query, &resp))
	return &resp
}

// AssertAPIError asserts that an API call returns a specific error
func (s *TestSuite) AssertAPIError(resp *http.Response, expectedCode int, expectedErrCode string) {
	defer resp.Body.Close()
	assert.Equal(s.T(), expectedCode, resp.StatusCode)

	var errorResp map[string]interface{}
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&errorResp))

	if expectedErrCode != "" {
		assert.Equal(s.T(), expectedErrCode, errorResp["code"])
	}
}

// AssertValidationError asserts that a validation error names field
func (s *TestSuite) AssertValidationError(resp *http.Response, field string) {
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)

	var errorResp map[string]interface{}
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&errorResp))
	assert.Equal(s.T(), "VALIDATION_FAILED", errorResp["code"])

	details, _ := errorResp["details"].(map[string]interface{})
	if fieldErrors, ok := details["errors"].([]interface{}); ok {
		found := false
		for _, fe := range fieldErrors {
			if errMap, ok := fe.(map[string]interface{}); ok && errMap["field"] == field {
				found = true
				break
			}
		}
		assert.True(s.T(), found, "validation error for field %q not found", field)
		return
	}
	assert.Equal(s.T(), field, details["field"])
}

// AssertDatabaseCount asserts the count of records in database
func (s *TestSuite) AssertDatabaseCount(model interface{}, expectedCount int64) {
	var count int64
	require.NoError(s.T(), s.DB.Model(model).Count(&count).Error)
	assert.Equal(s.T(), expectedCount, count)
}

// LoadTest issues GET requests on endpoint from concurrency workers until
// duration elapses.
func (s *TestSuite) LoadTest(endpoint string, duration time.Duration, concurrency int) *LoadTestResult {
	result := &LoadTestResult{
		StartTime:   time.Now(),
		Duration:    duration,
		Concurrency: concurrency,
		StatusCodes: make(map[int]int64),
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	requestsChan := make(chan RequestResult, 1000)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			client := &APITestClient{
				baseURL:    s.TestServer.URL,
				httpClient: &http.Client{Timeout: 10 * time.Second},
			}

			for ctx.Err() == nil {
				start := time.Now()
				resp, err := client.GET(endpoint)
				reqResult := RequestResult{
					Duration: time.Since(start),
					Error:    err,
				}
				if resp != nil {
					reqResult.StatusCode = resp.StatusCode
					resp.Body.Close()
				}
				requestsChan <- reqResult
			}
		}()
	}

	go func() {
		wg.Wait()
		close(requestsChan)
	}()

	for reqResult := range requestsChan {
		if reqResult.Error == nil && reqResult.StatusCode < 400 {
			result.SuccessfulRequests++
		} else {
			result.FailedRequests++
		}
		if reqResult.StatusCode != 0 {
			result.StatusCodes[reqResult.StatusCode]++
		}
	}

	result.EndTime = time.Now()
	result.TotalRequests = result.SuccessfulRequests + result.FailedRequests
	result.RequestsPerSecond = float64(result.TotalRequests) / result.EndTime.Sub(result.StartTime).Seconds()

	return result
}

// LoadTestResult contains load test results
type LoadTestResult struct {
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
	Concurrency        int
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	RequestsPerSecond  float64
	StatusCodes        map[int]int64
}

// RequestResult contains individual request result
type RequestResult struct {
	Duration   time.Duration
	StatusCode int
	Error      error
}
