package testsuite

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/studyhub/studyhub/src/internal/database/models"
	"github.com/studyhub/studyhub/src/internal/ingest"
	"github.com/studyhub/studyhub/src/internal/metadata"
	"github.com/studyhub/studyhub/src/internal/search"
)

// APITestSuite tests the API endpoints
type APITestSuite struct {
	TestSuite

	uploader *models.User
	calculus *models.Course
	physics  *models.Course
}

// TestAPITestSuite runs the API test suite
func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	s.TestSuite.SetupTest()
	s.uploader = s.TestData.CreateUser(s.T(), "dana")
	s.calculus = s.TestData.CreateCourse(s.T(), "0366-1101", "Calculus 1")
	s.physics = s.TestData.CreateCourse(s.T(), "0321-1101", "Physics 1")
}

func (s *APITestSuite) material(title string, mutate func(m *models.Material)) *models.Material {
	m := &models.Material{
		Title:        title,
		MaterialType: models.MaterialTypeNotes,
		UploaderID:   s.uploader.ID,
		CourseID:     s.calculus.ID,
	}
	if mutate != nil {
		mutate(m)
	}
	return s.TestData.CreateMaterial(s.T(), m)
}

func strPtr(v string) *string { return &v }

func query(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

func (s *APITestSuite) TestHealthCheck() {
	resp, err := s.APIClient.GET("/health")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&health))
	s.Equal("healthy", health["status"])
	s.NotEmpty(health["version"])

	db := health["database"].(map[string]interface{})
	s.Equal(true, db["healthy"])
}

func (s *APITestSuite) TestSearchRanksByField() {
	s.material("Limits and Continuity", func(m *models.Material) { m.MaterialType = models.MaterialTypeSummary })
	s.material("Week 3", func(m *models.Material) { m.Description = strPtr("Worked examples on limits") })
	s.material("Exam 2024", func(m *models.Material) {
		m.MaterialType = models.MaterialTypeExam
		m.FileName = strPtr("limits_exam.pdf")
	})
	s.material("Lecture 5", func(m *models.Material) {
		m.MaterialType = models.MaterialTypeSlides
		m.FileContentText = strPtr("the epsilon delta definition of limits")
	})
	s.material("Unrelated", nil)

	resp := s.SearchMaterials("q=limits")
	s.Equal("limits", resp.Query)
	s.Require().Equal(4, resp.TotalResults)

	s.Equal("Limits and Continuity", resp.Results[0].Title)
	s.Equal(search.MatchTitle, resp.Results[0].MatchType)
	s.Equal("**Limits** and Continuity", resp.Results[0].Snippet)

	s.Equal(search.MatchDescription, resp.Results[1].MatchType)
	s.Equal("Worked examples on **limits**", resp.Results[1].Snippet)

	s.Equal(search.MatchFilename, resp.Results[2].MatchType)
	s.Equal("**limits**_exam.pdf", resp.Results[2].Snippet)

	s.Equal(search.MatchContent, resp.Results[3].MatchType)
	s.Equal("the epsilon delta definition of **limits**", resp.Results[3].Snippet)

	for _, r := range resp.Results {
		s.Equal("Calculus 1", r.CourseName)
		s.Equal("dana", r.UploaderUsername)
	}
}

func (s *APITestSuite) TestSearchFilters() {
	s.material("Vectors notes", nil)
	s.material("Vectors exam", func(m *models.Material) { m.MaterialType = models.MaterialTypeExam })
	s.material("Vectors in mechanics", func(m *models.Material) { m.CourseID = s.physics.ID })

	resp := s.SearchMaterials(query(map[string]string{
		"q":         "vectors",
		"course_id": idString(s.calculus.ID),
	}))
	s.Equal(2, resp.TotalResults)

	resp = s.SearchMaterials(query(map[string]string{
		"q":             "VECTORS",
		"material_type": "exam",
	}))
	s.Require().Equal(1, resp.TotalResults)
	s.Equal("Vectors exam", resp.Results[0].Title)
	s.Equal("VECTORS", resp.Query)

	resp = s.SearchMaterials("q=vectors&limit=1")
	s.Equal(1, resp.TotalResults)

	resp = s.SearchMaterials("q=tensors")
	s.Equal(0, resp.TotalResults)
	s.NotNil(resp.Results)
}

func (s *APITestSuite) TestSearchSortOrders() {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s.material("Integrals old", func(m *models.Material) {
		m.CreatedAt = base
		m.AverageRating = 4.5
	})
	s.material("Integrals new", func(m *models.Material) {
		m.CreatedAt = base.Add(48 * time.Hour)
		m.AverageRating = 3
	})
	s.material("Integrals mid", func(m *models.Material) {
		m.CreatedAt = base.Add(24 * time.Hour)
		m.AverageRating = 5
	})

	titles := func(resp *search.SearchResponse) []string {
		out := make([]string, 0, len(resp.Results))
		for _, r := range resp.Results {
			out = append(out, r.Title)
		}
		return out
	}

	s.Equal([]string{"Integrals new", "Integrals mid", "Integrals old"},
		titles(s.SearchMaterials("q=integrals&sort_by=date")))
	s.Equal([]string{"Integrals mid", "Integrals old", "Integrals new"},
		titles(s.SearchMaterials("q=integrals&sort_by=rating")))
}

func (s *APITestSuite) TestHebrewSearch() {
	s.material("סיכום אינפי 1", func(m *models.Material) {
		m.MaterialType = models.MaterialTypeSummary
		m.Description = strPtr("סיכום מלא של הקורס")
	})

	resp := s.SearchMaterials(query(map[string]string{"q": "אינפי"}))
	s.Require().Equal(1, resp.TotalResults)
	s.Equal(search.MatchTitle, resp.Results[0].MatchType)
	s.Equal("סיכום **אינפי** 1", resp.Results[0].Snippet)
	s.Equal(models.MaterialTypeSummary, resp.Results[0].MaterialType)
}

func (s *APITestSuite) TestSearchValidation() {
	tests := []struct {
		query string
		field string
	}{
		{"", "q"},
		{"q=x&limit=0", "limit"},
		{"q=x&limit=21", "limit"},
		{"q=x&limit=abc", "limit"},
		{"q=x&material_type=video", "material_type"},
		{"q=x&sort_by=popularity", "sort_by"},
		{"q=x&course_id=-4", "course_id"},
	}

	for _, tt := range tests {
		resp, err := s.APIClient.GET("/api/v1/search/materials?" + tt.query)
		s.Require().NoError(err)
		s.AssertValidationError(resp, tt.field)
	}
}

func (s *APITestSuite) TestReindexMakesContentSearchable() {
	m := s.material("Lecture 7", func(m *models.Material) {
		m.FilePath = "lecture7.pdf"
		m.FileExtension = ".pdf"
	})
	s.Pages.Set("lecture7.pdf", "Derivatives of polynomials", "", "Chain rule")
	s.Metadata.Result = &metadata.Metadata{PageCount: 2, Topics: []string{"נגזרות", "כלל השרשרת"}}

	// cached empty response
	s.Equal(0, s.SearchMaterials("q=chain+rule").TotalResults)

	var result ingest.Result
	s.Require().NoError(s.APIClient.PostJSON("/api/v1/materials/"+idString(m.ID)+"/reindex", nil, &result))
	s.True(result.Extracted)
	s.Equal(3, result.Pages)
	s.True(result.AIProcessed)

	resp := s.SearchMaterials("q=chain+rule")
	s.Require().Equal(1, resp.TotalResults)
	s.Equal(search.MatchContent, resp.Results[0].MatchType)
	s.Contains(resp.Results[0].Snippet, "**Chain rule**")

	stored := s.TestData.Material(s.T(), m.ID)
	s.Require().NotNil(stored.FileContentText)
	s.Equal("Derivatives of polynomials\nChain rule", *stored.FileContentText)
	s.True(stored.AIProcessed)
	s.Require().NotNil(stored.PageCount)
	s.Equal(2, *stored.PageCount)
	s.Equal([]string{"נגזרות", "כלל השרשרת"}, stored.TopicList())
}

func (s *APITestSuite) TestReindexMissingFileClearsText() {
	m := s.material("Lost file", func(m *models.Material) {
		m.FilePath = "gone.pdf"
		m.FileExtension = ".pdf"
		m.FileContentText = strPtr("stale text")
	})

	var result ingest.Result
	s.Require().NoError(s.APIClient.PostJSON("/api/v1/materials/"+idString(m.ID)+"/reindex", nil, &result))
	s.False(result.Extracted)

	stored := s.TestData.Material(s.T(), m.ID)
	s.Nil(stored.FileContentText)
	s.Equal(0, s.SearchMaterials("q=stale").TotalResults)
}

func (s *APITestSuite) TestReindexErrors() {
	resp, err := s.APIClient.POST("/api/v1/materials/999999/reindex", nil)
	s.Require().NoError(err)
	s.AssertAPIError(resp, http.StatusNotFound, "NOT_FOUND")

	resp, err = s.APIClient.POST("/api/v1/materials/zero/reindex", nil)
	s.Require().NoError(err)
	s.AssertAPIError(resp, http.StatusBadRequest, "VALIDATION_FAILED")
}

func (s *APITestSuite) TestCORS() {
	resp, err := s.APIClient.GETWithHeaders("/api/v1/search/materials?q=x", map[string]string{
		"Origin": "https://mirror.example",
	})
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("https://mirror.example", resp.Header.Get("Access-Control-Allow-Origin"))
	s.NotEmpty(resp.Header.Get("X-Request-ID"))
}

func (s *APITestSuite) TestMetricsExposeSearches() {
	s.SearchMaterials("q=anything&sort_by=date")

	resp, err := s.APIClient.GET("/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(body), `studyhub_search_queries_total{sort_by="date"}`)
}

func (s *APITestSuite) TestSearchUnderLoad() {
	s.material("Load material", nil)

	result := s.LoadTest("/api/v1/search/materials?q=load", 300*time.Millisecond, 4)
	s.Positive(result.TotalRequests)
	s.Zero(result.FailedRequests)
	s.Equal(result.TotalRequests, result.StatusCodes[http.StatusOK])
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
