package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/studyhub/studyhub/src/internal/errors"
	"github.com/studyhub/studyhub/src/internal/ingest"
	"github.com/studyhub/studyhub/src/internal/search"
)

// Ingester re-extracts a material; *ingest.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, id uint) (*ingest.Result, error)
}

// MaterialHandler handles material maintenance endpoints
type MaterialHandler struct {
	ingester Ingester
}

// NewMaterialHandler creates a new material handler
func NewMaterialHandler(ingester Ingester) *MaterialHandler {
	return &MaterialHandler{ingester: ingester}
}

// RegisterRoutes registers material routes
func (h *MaterialHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/materials/:id/reindex", h.Reindex)
}

// Reindex handles POST /api/v1/materials/:id/reindex
func (h *MaterialHandler) Reindex(c echo.Context) error {
	rawID := c.Param("id")
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return apperrors.NewValidationError("Invalid material ID", "id")
	}

	result, err := h.ingester.Ingest(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, search.ErrMaterialNotFound) {
			return apperrors.NotFoundError("Material", rawID)
		}
		return apperrors.DatabaseError("Reindex failed", err)
	}

	return c.JSON(http.StatusOK, result)
}
