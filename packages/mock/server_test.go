package mock

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/auth"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/env"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"
	jphttp "github.com/abdul-hamid-achik/jsonprobe/packages/http"
	"github.com/abdul-hamid-achik/jsonprobe/packages/nested"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definitions = `[
  {
    "name": "login",
    "request": {"method": "POST", "url": "/api/auth/login", "payload": {"username": "ada"}}
  },
  {
    "name": "get user",
    "request": {
      "method": "GET",
      "url": "users/1",
      "headers": {"Authorization": "Bearer {{ACCESS_TOKEN}}"}
    },
    "assertions": {
      "data.name": {"validator": "exact", "expected": "Ada"},
      "data.roles.1": {"validator": "exact", "expected": "admin"},
      "data.bio": {"validator": "contains", "expected": "math"}
    }
  },
  {
    "name": "search active",
    "request": {"method": "GET", "url": "/search", "params": {"active": true}},
    "assertions": {"count": {"validator": "exact", "expected": 2}}
  },
  {
    "name": "search all",
    "request": {"method": "GET", "url": "/search"},
    "assertions": {"count": {"validator": "exact", "expected": 5}}
  },
  {
    "name": "list",
    "request": {"method": "GET", "url": "/items"},
    "assertions": {"0.id": {"validator": "exact", "expected": 1}}
  }
]`

func loadServer(t *testing.T, opts ...Option) (*Server, []*definition.Case) {
	t.Helper()
	cases, err := definition.Parse([]byte(definitions))
	require.NoError(t, err)

	s := NewServer(opts...)
	require.NoError(t, s.LoadCases(cases))
	return s, cases
}

func get(t *testing.T, url string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	_ = json.Unmarshal(data, &body)
	return resp.StatusCode, body
}

func TestServer_Routes(t *testing.T) {
	s, _ := loadServer(t)

	routes := s.Routes()
	require.Len(t, routes, 5)
	assert.Equal(t, "POST", routes[0].Method)
	assert.Equal(t, "/api/auth/login", routes[0].Path)
	assert.Equal(t, "/users/1", routes[1].Path)
	assert.Equal(t, "Bearer "+DefaultToken, routes[1].TokenHeaders["Authorization"])
	assert.Equal(t, "true", routes[2].Query.Get("active"))
	assert.Nil(t, routes[3].Query)
}

func TestServer_SynthesizedBody(t *testing.T) {
	s, _ := loadServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	status, body := get(t, server.URL+"/users/1", map[string]string{"Authorization": "Bearer " + DefaultToken})
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.Equal(t, "Ada", data["name"])
	assert.Equal(t, []any{nil, "admin"}, data["roles"])
	assert.Equal(t, "math", data["bio"])
}

func TestServer_TopLevelArrayBody(t *testing.T) {
	s, _ := loadServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/items")
	require.NoError(t, err)
	defer resp.Body.Close()

	var items []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, float64(1), items[0]["id"])
}

func TestServer_RequiresToken(t *testing.T) {
	s, _ := loadServer(t, WithToken("custom"))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	status, body := get(t, server.URL+"/users/1", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "Authorization")

	status, _ = get(t, server.URL+"/users/1", map[string]string{"Authorization": "Bearer custom"})
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_LoginIssuesToken(t *testing.T) {
	s, _ := loadServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, DefaultToken, body["accessToken"])
	assert.Equal(t, DefaultToken, body["access_token"])
	assert.Equal(t, DefaultToken, body["token"])
}

func TestServer_QuerySpecificity(t *testing.T) {
	s, _ := loadServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	_, body := get(t, server.URL+"/search?active=true", nil)
	assert.Equal(t, float64(2), body["count"])

	_, body = get(t, server.URL+"/search", nil)
	assert.Equal(t, float64(5), body["count"])

	_, body = get(t, server.URL+"/search/?active=false", nil)
	assert.Equal(t, float64(5), body["count"])
}

func TestServer_NotFound(t *testing.T) {
	s, _ := loadServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	status, body := get(t, server.URL+"/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "/missing")

	resp, err := http.Post(server.URL+"/users/1", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_DefaultBody(t *testing.T) {
	s := NewServer()
	require.NoError(t, s.LoadCases([]*definition.Case{
		{Request: definition.Request{Method: "DELETE", URL: "https://api.example.com/users/1"}},
	}))

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/users/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Delay(t *testing.T) {
	s, _ := loadServer(t, WithDelay(50*time.Millisecond))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	start := time.Now()
	get(t, server.URL+"/search", nil)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestServer_Serve(t *testing.T) {
	s, _ := loadServer(t)

	listener, err := newLocalListener()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	status, _ := get(t, "http://"+listener.Addr().String()+"/search", nil)
	assert.Equal(t, http.StatusOK, status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// The definitions a mock is built from pass when run against it.
func TestServer_DefinitionsPassAgainstMock(t *testing.T) {
	s, cases := loadServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	client := jphttp.NewClient(jphttp.WithBaseURL(server.URL))
	session, err := auth.NewResolver(client, auth.WithLookup(env.FromMap(nil))).Resolve(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, DefaultToken, session.Token)

	result := runner.NewRunner(client, nil, runner.WithSession(session)).Run(context.Background(), cases)
	for _, r := range result.Results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.FailureMessage())
	}
	assert.Equal(t, len(cases), result.Passed)
}

func TestServer_RejectsHugeIndex(t *testing.T) {
	cases, err := definition.Parse([]byte(`[
  {
    "name": "events",
    "request": {"method": "GET", "url": "/events"},
    "assertions": {"events.1700000000": {"validator": "exact", "expected": "late"}}
  }
]`))
	require.NoError(t, err)

	s := NewServer()
	err = s.LoadCases(cases)
	require.ErrorIs(t, err, nested.ErrIndexTooLarge)
	assert.ErrorContains(t, err, `case "events"`)
	assert.Empty(t, s.Routes())
}
