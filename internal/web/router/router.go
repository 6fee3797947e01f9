// Package router wraps chi with route introspection
package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dimgraph/dimgraph/internal/web/middleware"
	"github.com/dimgraph/dimgraph/internal/web/response"
)

// Router registers handlers on a chi mux and remembers what it registered
type Router struct {
	mux    chi.Router
	prefix string
	table  *routeTable
}

type routeTable struct {
	routes []*Route
}

// Route is one registered method and pattern
type Route struct {
	Pattern string
	Method  string
	Name    string
}

// RouteInfo describes a route for listing
type RouteInfo struct {
	Pattern    string           `json:"pattern"`
	Method     string           `json:"method"`
	Name       string           `json:"name,omitempty"`
	Parameters []RouteParameter `json:"parameters,omitempty"`
}

// RouteParameter is a path placeholder of a route
type RouteParameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// New creates a router whose unmatched routes answer with JSON errors
func New() *Router {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderNotFound(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusMethodNotAllowed,
			fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
	})
	return &Router{mux: mux, table: &routeTable{}}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware to every route. It must be called before any route is
// registered on this router.
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// Group registers routes under a common prefix
func (r *Router) Group(prefix string, fn func(r *Router)) {
	r.mux.Route(prefix, func(sub chi.Router) {
		fn(&Router{mux: sub, prefix: r.prefix + prefix, table: r.table})
	})
}

// With returns a router whose routes get the extra middleware
func (r *Router) With(middlewares ...middleware.Middleware) *Router {
	fns := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, m := range middlewares {
		fns[i] = m
	}
	return &Router{mux: r.mux.With(fns...), prefix: r.prefix, table: r.table}
}

// Get registers a GET route
func (r *Router) Get(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodGet, pattern, handler)
}

// Post registers a POST route
func (r *Router) Post(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodPost, pattern, handler)
}

// Put registers a PUT route
func (r *Router) Put(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodPut, pattern, handler)
}

// Delete registers a DELETE route
func (r *Router) Delete(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodDelete, pattern, handler)
}

// Handle registers handler for method and pattern
func (r *Router) Handle(method, pattern string, handler http.Handler) *Route {
	r.mux.Method(method, pattern, handler)
	route := &Route{Pattern: r.prefix + pattern, Method: method}
	r.table.routes = append(r.table.routes, route)
	return route
}

// Named sets the name used by URL
func (route *Route) Named(name string) *Route {
	route.Name = name
	return route
}

// Routes lists registered routes ordered by pattern then method
func (r *Router) Routes() []RouteInfo {
	out := make([]RouteInfo, len(r.table.routes))
	for i, route := range r.table.routes {
		out[i] = RouteInfo{
			Pattern:    route.Pattern,
			Method:     route.Method,
			Name:       route.Name,
			Parameters: extractParameters(route.Pattern),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// RouteList renders Routes as an aligned table
func (r *Router) RouteList() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-8s %-50s %s\n", "METHOD", "PATTERN", "NAME")
	for _, info := range r.Routes() {
		fmt.Fprintf(&sb, "%-8s %-50s %s\n", info.Method, info.Pattern, info.Name)
	}
	return sb.String()
}

// URL builds the path of a named route
func (r *Router) URL(name string, params map[string]string) (string, error) {
	for _, route := range r.table.routes {
		if route.Name != name {
			continue
		}
		url := route.Pattern
		for key, value := range params {
			url = strings.ReplaceAll(url, "{"+key+"}", value)
		}
		if strings.Contains(url, "{") {
			return "", fmt.Errorf("missing parameter values for route %s", name)
		}
		return url, nil
	}
	return "", fmt.Errorf("route not found: %s", name)
}

func extractParameters(pattern string) []RouteParameter {
	var params []RouteParameter
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.Trim(part, "{}")
			params = append(params, RouteParameter{Name: name, Type: inferParameterType(name)})
		}
	}
	return params
}

func inferParameterType(name string) string {
	if strings.HasPrefix(name, "page") || strings.HasPrefix(name, "offset") {
		return "int"
	}
	return "string"
}
