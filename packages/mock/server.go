// Package mock serves canned JSON responses derived from test definitions, so
// a definition set can be exercised without the real API.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/assertions"
	"github.com/abdul-hamid-achik/jsonprobe/packages/auth"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	jphttp "github.com/abdul-hamid-achik/jsonprobe/packages/http"
	"github.com/abdul-hamid-achik/jsonprobe/packages/nested"
)

const (
	// DefaultPort is used when no port is configured.
	DefaultPort = 3000
	// DefaultToken is issued by login routes and required by token-protected routes.
	DefaultToken = "mock-access-token"

	// bodyRoot anchors synthesized bodies so a path may start with an index.
	bodyRoot = "$"
)

// Server is a mock HTTP server built from test definitions
type Server struct {
	router *Router
	port   int
	delay  time.Duration
	token  string
	logger *slog.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithToken sets the token returned by login routes.
func WithToken(token string) Option {
	return func(s *Server) {
		if token != "" {
			s.token = token
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new mock server
func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
		port:   DefaultPort,
		token:  DefaultToken,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the token issued by login routes.
func (s *Server) Token() string {
	return s.token
}

// LoadCases registers a route for each case.
func (s *Server) LoadCases(cases []*definition.Case) error {
	for _, c := range cases {
		route, err := s.createRoute(c)
		if err != nil {
			return fmt.Errorf("case %q: %w", c.DisplayName(), err)
		}
		s.router.AddRoute(route)
	}
	return nil
}

// LoadFiles loads routes from definition files
func (s *Server) LoadFiles(paths []string) error {
	cases, err := definition.LoadFiles(paths)
	if err != nil {
		return err
	}
	return s.LoadCases(cases)
}

func (s *Server) createRoute(c *definition.Case) (*Route, error) {
	path, query, err := splitURL(c.Request.URL, c.Request.Params)
	if err != nil {
		return nil, err
	}

	body, err := s.synthesizeBody(c)
	if err != nil {
		return nil, err
	}

	route := &Route{
		Method: strings.ToUpper(c.Request.Method),
		Path:   path,
		Query:  query,
		Name:   c.DisplayName(),
		Response: &MockResponse{
			StatusCode:  http.StatusOK,
			ContentType: "application/json",
			Headers:     make(map[string]string),
			Body:        body,
		},
	}

	for name, value := range c.Request.Headers {
		if strings.Contains(value, auth.TokenPlaceholder) {
			if route.TokenHeaders == nil {
				route.TokenHeaders = make(map[string]string)
			}
			route.TokenHeaders[name] = strings.ReplaceAll(value, auth.TokenPlaceholder, s.token)
		}
	}

	return route, nil
}

// splitURL returns the path of rawURL and the query the case sends, merging
// any query already in the URL with params.
func splitURL(rawURL string, params map[string]any) (string, neturl.Values, error) {
	full, err := jphttp.BuildURL(jphttp.ResolveURL("http://mock.invalid", rawURL), jphttp.NormalizeParams(params))
	if err != nil {
		return "", nil, err
	}

	u, err := neturl.Parse(full)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	query := u.Query()
	if len(query) == 0 {
		query = nil
	}
	return u.Path, query, nil
}

// synthesizeBody builds a JSON body that satisfies the case's assertions.
// Exact assertions set their expected value; contains assertions set the
// expected substring when no exact assertion covers the path. Login routes
// also carry the mock token.
func (s *Server) synthesizeBody(c *definition.Case) ([]byte, error) {
	root := make(map[string]any)
	exactPaths := make(map[string]bool)

	for _, a := range c.Assertions {
		if a.Validator == assertions.Exact {
			if err := nested.Set(root, bodyRoot+nested.Separator+a.Path, a.Expected); err != nil {
				return nil, err
			}
			exactPaths[a.Path] = true
		}
	}
	for _, a := range c.Assertions {
		if a.Validator != assertions.Contains || exactPaths[a.Path] {
			continue
		}
		if substr, ok := a.Expected.(string); ok {
			if err := nested.Set(root, bodyRoot+nested.Separator+a.Path, substr); err != nil {
				return nil, err
			}
		}
	}

	if auth.IsLoginURL(c.Request.URL) {
		body, _ := root[bodyRoot].(map[string]any)
		if body == nil && root[bodyRoot] == nil {
			body = make(map[string]any)
		}
		if body != nil {
			for _, field := range []string{"accessToken", "access_token", "token"} {
				if _, exists := body[field]; !exists {
					body[field] = s.token
				}
			}
			root[bodyRoot] = body
		}
	}

	body, exists := root[bodyRoot]
	if !exists {
		body = map[string]any{"status": "ok"}
	}
	return json.MarshalIndent(body, "", "  ")
}

// Handler returns the mock as an http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// StartWithContext serves until ctx is done, then shuts down gracefully.
func (s *Server) StartWithContext(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock server starting", "addr", listener.Addr().String(), "routes", len(s.router.routes))
	for _, route := range s.router.routes {
		s.logger.Debug("route", "method", route.Method, "path", route.Path, "query", route.Query.Encode(), "name", route.Name)
	}

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	route := s.router.Match(r.Method, r.URL.Path, r.URL.Query())
	if route == nil {
		s.logger.Info("no route", "method", r.Method, "path", r.URL.Path, "status", http.StatusNotFound, "duration", time.Since(start))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no mock route for " + r.Method + " " + r.URL.Path})
		return
	}

	for name, want := range route.TokenHeaders {
		if r.Header.Get(name) != want {
			s.logger.Info("rejected", "method", r.Method, "path", r.URL.Path, "header", name, "status", http.StatusUnauthorized)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid " + name})
			return
		}
	}

	resp := route.Response
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)

	s.logger.Info("served", "method", r.Method, "path", r.URL.Path, "route", route.Name, "status", resp.StatusCode, "duration", time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	return s.router.Routes()
}
