package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimgraph/dimgraph/internal/translate"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestRenderError(t *testing.T) {
	tests := []struct {
		name   string
		render func(w http.ResponseWriter)
		status int
		code   string
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { RenderBadRequest(w, "bad body") }, 400, "bad_request", "bad body"},
		{"not found default", func(w http.ResponseWriter) { RenderNotFound(w, "") }, 404, "not_found", "Resource not found"},
		{"internal", func(w http.ResponseWriter) { RenderInternalError(w, errors.New("db down")) }, 500, "internal_error", "db down"},
		{"http error", func(w http.ResponseWriter) {
			RenderError(w, 500, fmt.Errorf("wrapped: %w", NewHTTPError(409, "taken").WithCode("model_exists")))
		}, 409, "model_exists", "taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.render(rec)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, contentType, rec.Header().Get("Content-Type"))
			var body ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, "error", body.Error)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.msg, body.Message)
		})
	}
}

func TestRenderError_Validation(t *testing.T) {
	v := translate.Validation{Errors: []translate.FieldError{{Field: "dims[0].path", Message: "required"}}}
	rec := httptest.NewRecorder()
	RenderError(rec, http.StatusBadRequest, v.Err())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body translate.Validation
	decode(t, rec, &body)
	assert.False(t, body.Success)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "dims[0].path", body.Errors[0].Field)
}

func TestHTTPError_Details(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTTPError(http.StatusNotFound, "no node").WithDetails(map[string]any{"node": "dim_1"}).Render(rec)

	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "not_found", body.Code)
	assert.Equal(t, "dim_1", body.Details["node"])
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
