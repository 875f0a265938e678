package mock

import (
	"net/url"
	"slices"
	"strings"
)

// Route is the canned response for one test case's request.
type Route struct {
	Method string
	Path   string
	// Query must be a subset of the incoming query string for the route to match.
	Query    url.Values
	Name     string
	Response *MockResponse
	// TokenHeaders maps header names to the value a request must carry.
	TokenHeaders map[string]string
}

// MockResponse represents a mock HTTP response
type MockResponse struct {
	StatusCode  int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// AddRoute adds a route to the router
func (r *Router) AddRoute(route *Route) {
	route.Path = normalizePath(route.Path)
	r.routes = append(r.routes, route)
}

// Routes returns the registered routes in insertion order.
func (r *Router) Routes() []*Route {
	return r.routes
}

// Match finds the route for method, path and query. Among matching routes the
// one with the most query constraints wins; ties go to the earliest route.
func (r *Router) Match(method, path string, query url.Values) *Route {
	path = normalizePath(path)

	var best *Route
	for _, route := range r.routes {
		if !strings.EqualFold(route.Method, method) || route.Path != path {
			continue
		}
		if !matchQuery(route.Query, query) {
			continue
		}
		if best == nil || len(route.Query) > len(best.Query) {
			best = route
		}
	}
	return best
}

func matchQuery(want, got url.Values) bool {
	for key, values := range want {
		for _, value := range values {
			if !slices.Contains(got[key], value) {
				return false
			}
		}
	}
	return true
}

func normalizePath(path string) string {
	// Ensure path starts with /
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Remove trailing slash (except for root)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}
