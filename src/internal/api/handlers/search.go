package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"

	"github.com/studyhub/studyhub/src/internal/database/models"
	apperrors "github.com/studyhub/studyhub/src/internal/errors"
	"github.com/studyhub/studyhub/src/internal/search"
)

// Searcher runs material searches; *search.Manager implements it.
type Searcher interface {
	Search(ctx context.Context, rawQuery string, q search.SearchQuery) (*search.SearchResponse, error)
}

// SearchRequest holds the query parameters of a material search
type SearchRequest struct {
	Q            string `query:"q" validate:"required,min=1"`
	Limit        int    `query:"limit" validate:"min=1,max=20"`
	CourseID     *uint  `query:"course_id"`
	MaterialType string `query:"material_type" validate:"omitempty,oneof=summary exam slides notes link other"`
	SortBy       string `query:"sort_by" validate:"omitempty,oneof=relevance date rating"`
}

// SearchHandler handles search-related endpoints
type SearchHandler struct {
	searcher     Searcher
	defaultLimit int
	maxLimit     int
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher, config *viper.Viper) *SearchHandler {
	defaultLimit := config.GetInt("search.default_limit")
	if defaultLimit <= 0 {
		defaultLimit = search.DefaultLimit
	}
	maxLimit := config.GetInt("search.max_limit")
	if maxLimit <= 0 || maxLimit > search.MaxLimit {
		maxLimit = search.MaxLimit
	}
	return &SearchHandler{
		searcher:     searcher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// RegisterRoutes registers search routes
func (h *SearchHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/search/materials", h.SearchMaterials)
}

// SearchMaterials handles GET /api/v1/search/materials
func (h *SearchHandler) SearchMaterials(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}

	query := search.SearchQuery{
		Term:     req.Q,
		Limit:    req.Limit,
		CourseID: req.CourseID,
		SortBy:   search.SortBy(req.SortBy),
	}
	if req.MaterialType != "" {
		materialType := models.MaterialType(req.MaterialType)
		query.MaterialType = &materialType
	}

	resp, err := h.searcher.Search(c.Request().Context(), req.Q, query)
	if err != nil {
		return apperrors.DatabaseError("Search failed", err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) bind(c echo.Context) (*SearchRequest, error) {
	req := &SearchRequest{Limit: h.defaultLimit}

	var courseID uint
	err := echo.QueryParamsBinder(c).
		String("q", &req.Q).
		Int("limit", &req.Limit).
		Uint("course_id", &courseID).
		String("material_type", &req.MaterialType).
		String("sort_by", &req.SortBy).
		BindError()
	if err != nil {
		var be *echo.BindingError
		if errors.As(err, &be) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid value for %s", be.Field), be.Field)
		}
		return nil, apperrors.NewValidationError(err.Error(), "")
	}
	if c.QueryParam("course_id") != "" {
		req.CourseID = &courseID
	}

	if err := c.Validate(req); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	if req.Limit > h.maxLimit {
		return nil, apperrors.NewValidationError(fmt.Sprintf("limit must be at most %d", h.maxLimit), "limit")
	}

	return req, nil
}
