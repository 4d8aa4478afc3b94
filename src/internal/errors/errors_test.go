package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, debug bool, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	cfg := viper.New()
	cfg.Set("debug", debug)
	h := NewErrorHandler(cfg, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/materials", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.HTTPErrorHandler(err, e.NewContext(req, rec))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHTTPErrorHandler(t *testing.T) {
	t.Run("CustomError", func(t *testing.T) {
		rec, resp := serve(t, false, NewValidationError("q is required", "q"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
		assert.Equal(t, "q", resp.Details["field"])
		assert.Equal(t, "req-1", resp.RequestID)
	})

	t.Run("WrappedCustomError", func(t *testing.T) {
		err := fmt.Errorf("search: %w", NotFoundError("Material", "9"))
		rec, resp := serve(t, false, err)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})

	t.Run("EchoHTTPError", func(t *testing.T) {
		rec, resp := serve(t, false, echo.NewHTTPError(http.StatusMethodNotAllowed))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "METHOD_NOT_ALLOWED", resp.Code)
	})

	t.Run("InternalHiddenInProduction", func(t *testing.T) {
		rec, resp := serve(t, false, DatabaseError("Search failed", fmt.Errorf("no such table: materials")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", resp.Message)
		assert.Equal(t, "req-1", resp.Details["error_id"])
	})

	t.Run("InternalShownInDebug", func(t *testing.T) {
		_, resp := serve(t, true, DatabaseError("Search failed", fmt.Errorf("no such table: materials")))
		assert.Equal(t, "Search failed", resp.Message)
	})

	t.Run("PlainError", func(t *testing.T) {
		rec, resp := serve(t, false, fmt.Errorf("boom"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	})
}

func TestFromValidation(t *testing.T) {
	type request struct {
		Q     string `validate:"required,min=1"`
		Limit int    `validate:"min=1,max=20"`
		Sort  string `validate:"omitempty,oneof=relevance date rating"`
	}

	err := validator.New().Struct(request{Limit: 50, Sort: "stars"})
	require.Error(t, err)

	converted := FromValidation(err)
	var ce *CustomError
	require.ErrorAs(t, converted, &ce)
	assert.Equal(t, http.StatusBadRequest, ce.StatusCode)
	assert.Equal(t, "Q is required", ce.Message)

	fields, ok := ce.Details["errors"].([]FieldError)
	require.True(t, ok)
	require.Len(t, fields, 3)
	assert.Equal(t, "Limit must be at most 20", fields[1].Message)
	assert.Equal(t, "Sort must be one of: relevance, date, rating", fields[2].Message)

	plain := fmt.Errorf("not a validation error")
	assert.Same(t, plain, FromValidation(plain))
}
