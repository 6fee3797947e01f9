package router

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// PathParam returns a path placeholder value
func PathParam(req *http.Request, name string) string {
	return chi.URLParam(req, name)
}

// RequirePathParam returns a path placeholder value or an error when empty
func RequirePathParam(req *http.Request, name string) (string, error) {
	value := chi.URLParam(req, name)
	if value == "" {
		return "", fmt.Errorf("missing path parameter: %s", name)
	}
	return value, nil
}

// QueryInt reads an integer query parameter. Absent means defaultValue.
func QueryInt(req *http.Request, name string, defaultValue int) (int, error) {
	value := req.URL.Query().Get(name)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for parameter %s: %w", name, err)
	}
	return i, nil
}

// QueryBool reads a boolean query parameter. Absent means defaultValue.
func QueryBool(req *http.Request, name string, defaultValue bool) (bool, error) {
	value := req.URL.Query().Get(name)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for parameter %s: %w", name, err)
	}
	return b, nil
}
