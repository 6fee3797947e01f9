// Package response renders JSON bodies and error envelopes for the API
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dimgraph/dimgraph/internal/translate"
)

const contentType = "application/json; charset=utf-8"

// ErrorResponse is the body of every non-validation error
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// OK writes v with status 200
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// NoContent writes an empty 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RenderError writes err as an ErrorResponse. HTTPError values carry their
// own status; validation failures are rendered with RenderValidation.
func RenderError(w http.ResponseWriter, status int, err error) {
	var verr *translate.ValidationError
	if errors.As(err, &verr) {
		RenderValidation(w, translate.Validation{Success: false, Errors: verr.Errors})
		return
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		herr.Render(w)
		return
	}
	JSON(w, status, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    codeFromStatus(status),
	})
}

// RenderValidation writes a failed validation as 422
func RenderValidation(w http.ResponseWriter, v translate.Validation) {
	JSON(w, http.StatusUnprocessableEntity, v)
}

// RenderBadRequest writes a 400
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusBadRequest, errors.New(message))
}

// RenderNotFound writes a 404
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RenderError(w, http.StatusNotFound, errors.New(message))
}

// RenderInternalError writes a 500
func RenderInternalError(w http.ResponseWriter, err error) {
	message := "Internal server error"
	if err != nil {
		message = err.Error()
	}
	RenderError(w, http.StatusInternalServerError, errors.New(message))
}

func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusGatewayTimeout:
		return "gateway_timeout"
	default:
		return "error"
	}
}

// HTTPError is an error that knows its response status
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    map[string]any
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates an HTTPError with the default code for status
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{StatusCode: status, Message: message, Code: codeFromStatus(status)}
}

// WithCode overrides the error code
func (e *HTTPError) WithCode(code string) *HTTPError {
	e.Code = code
	return e
}

// WithDetails attaches details
func (e *HTTPError) WithDetails(details map[string]any) *HTTPError {
	e.Details = details
	return e
}

// Render writes the error
func (e *HTTPError) Render(w http.ResponseWriter) {
	JSON(w, e.StatusCode, &ErrorResponse{
		Error:   "error",
		Message: e.Message,
		Code:    e.Code,
		Details: e.Details,
	})
}
