package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/jsonprobe/packages/auth"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/config"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/env"
	"github.com/abdul-hamid-achik/jsonprobe/packages/history"
	"github.com/abdul-hamid-achik/jsonprobe/packages/mock"
	"github.com/abdul-hamid-achik/jsonprobe/packages/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("JSONPROBE_TEST_STRING", "value")
	t.Setenv("JSONPROBE_TEST_BOOL", "yes")
	t.Setenv("JSONPROBE_TEST_INT", "7")
	t.Setenv("JSONPROBE_TEST_BAD_INT", "seven")
	t.Setenv("JSONPROBE_TEST_FLOAT", "0.25")

	assert.Equal(t, "value", getEnvString("JSONPROBE_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnvString("JSONPROBE_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("JSONPROBE_TEST_BOOL", false))
	assert.True(t, getEnvBool("JSONPROBE_TEST_UNSET", true))
	assert.Equal(t, 7, getEnvInt("JSONPROBE_TEST_INT", 0))
	assert.Equal(t, -1, getEnvInt("JSONPROBE_TEST_BAD_INT", -1))
	assert.Equal(t, 0.25, getEnvFloat("JSONPROBE_TEST_FLOAT", 0))
	assert.Equal(t, -1.0, getEnvFloat("JSONPROBE_TEST_UNSET", -1))
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Accept: application/json", "X-Trace:  abc "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Trace": "abc"}, headers)

	headers, err = parseHeaders(nil)
	require.NoError(t, err)
	assert.Nil(t, headers)

	for _, bad := range []string{"no-colon", ": value"} {
		_, err := parseHeaders([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format string
		want   any
	}{
		{"", &output.ConsoleFormatter{}},
		{"console", &output.ConsoleFormatter{}},
		{"JSON", &output.JSONFormatter{}},
		{"junit", &output.JUnitFormatter{}},
		{"tap", &output.TAPFormatter{}},
	}
	for _, tt := range tests {
		f, err := newFormatter(tt.format, io.Discard, false, true)
		require.NoError(t, err, tt.format)
		assert.IsType(t, tt.want, f, tt.format)
	}

	_, err := newFormatter("html", io.Discard, false, true)
	assert.ErrorContains(t, err, `unknown output format "html"`)
}

func resetRunFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		baseURLFlag, proxyFlag, dirFlag, envFileFlag, historyDBFlag = "", "", "", "", ""
		outputFlag, timeoutFlag = "", ""
		retriesFlag, backoffFlag, rateFlag = -1, -1, 0
		insecureFlag, bailFlag, noColorFlag = false, false, false
		headerFlags = nil
	})
}

func TestRunFlagOverrides(t *testing.T) {
	resetRunFlags(t)
	baseURLFlag = "http://api.test"
	outputFlag = "tap"
	timeoutFlag = "2s"
	retriesFlag = 0
	backoffFlag = -1
	insecureFlag = true
	headerFlags = []string{"X-Env: ci"}

	o, err := runFlagOverrides()
	require.NoError(t, err)

	cfg := config.DefaultConfig().Merge(o)
	assert.Equal(t, "http://api.test", cfg.BaseURL)
	assert.Equal(t, []string{"tap"}, cfg.Reporters)
	assert.Equal(t, 2000, cfg.Timeout)
	assert.Equal(t, 0, cfg.GetMaxRetries())
	assert.Equal(t, config.DefaultBackoffFactor, cfg.GetBackoffFactor())
	assert.False(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetBail())
	assert.Equal(t, "ci", cfg.Headers["X-Env"])
}

func TestRunFlagOverridesInvalidTimeout(t *testing.T) {
	resetRunFlags(t)
	retriesFlag, backoffFlag = -1, -1

	for _, value := range []string{"soon", "-1s"} {
		timeoutFlag = value
		_, err := runFlagOverrides()
		assert.ErrorContains(t, err, "invalid timeout value", value)
	}
}

func writeDefinitions(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	b := writeDefinitions(t, dir, "test_definitions_b.json", "[]")
	a := writeDefinitions(t, dir, "test_definitions_a.json", "[]")
	other := writeDefinitions(t, t.TempDir(), "cases.json", "[]")

	files, err := collectFiles(nil, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	files, err = collectFiles([]string{other, dir}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{other, a, b}, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing.json")}, "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = collectFiles(nil, t.TempDir())
	assert.ErrorIs(t, err, definition.ErrNoDefinitions)
}

func TestWatchDirs(t *testing.T) {
	dir := t.TempDir()
	file := writeDefinitions(t, dir, "test_definitions.json", "[]")

	assert.Equal(t, []string{dir}, watchDirs([]string{dir, file}, ""))
	assert.Equal(t, []string{"."}, watchDirs(nil, ""))
}

func TestIsDefinitionFile(t *testing.T) {
	assert.True(t, isDefinitionFile("/tmp/test_definitions.json"))
	assert.True(t, isDefinitionFile("test_definitions_users.json"))
	assert.False(t, isDefinitionFile("jsonprobe.yaml"))
	assert.False(t, isDefinitionFile("definitions.json"))
}

func TestAuthExitCode(t *testing.T) {
	assert.Equal(t, ExitConfigError, authExitCode(&env.MissingConfigError{Name: env.LoginPasswordVar}))
	assert.Equal(t, ExitConfigError, authExitCode(fmt.Errorf("resolve: %w", auth.ErrNoLoginSource)))
	assert.Equal(t, ExitNetworkError, authExitCode(errors.New("connection refused")))
}

func TestExitError(t *testing.T) {
	err := exitWith(ExitParseError, nil)
	assert.Equal(t, "exit status 2", err.Error())

	wrapped := exitWith(ExitConfigError, os.ErrNotExist)
	assert.ErrorIs(t, wrapped, os.ErrNotExist)
	assert.Equal(t, os.ErrNotExist.Error(), wrapped.Error())
}

func newTestSession(t *testing.T, baseURL string, args []string, out io.Writer) *runSession {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MaxRetries = config.IntPtr(0)
	return &runSession{
		cfg:     cfg,
		args:    args,
		format:  "json",
		out:     out,
		errOut:  io.Discard,
		logger:  slog.New(slog.DiscardHandler),
		history: filepath.Join(t.TempDir(), "history.db"),
	}
}

func TestRunSessionAgainstMock(t *testing.T) {
	t.Setenv(env.LoginURLVar, "")

	dir := t.TempDir()
	writeDefinitions(t, dir, definition.DefaultFile, exampleDefinitions)

	server := mock.NewServer()
	require.NoError(t, server.LoadFiles([]string{filepath.Join(dir, definition.DefaultFile)}))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	var out bytes.Buffer
	s := newTestSession(t, ts.URL, []string{dir}, &out)

	result, err := s.execute(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 3, result.Passed)

	var report output.JSONOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, result.ID, report.RunID)
	assert.Equal(t, 3, report.Summary.Passed)

	store, err := history.Open(s.history)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.ID, runs[0].ID)
	assert.Equal(t, dir, runs[0].Source)
}

func TestRunSessionParseError(t *testing.T) {
	dir := t.TempDir()
	writeDefinitions(t, dir, definition.DefaultFile, `{"name": "not a list"}`)

	s := newTestSession(t, "http://127.0.0.1:1", []string{dir}, io.Discard)
	_, err := s.execute(context.Background())

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitParseError, exitErr.Code)
}

func TestRunSessionMissingLoginSource(t *testing.T) {
	t.Setenv(env.LoginURLVar, "")

	dir := t.TempDir()
	writeDefinitions(t, dir, definition.DefaultFile, `[
  {"name": "me", "request": {"method": "GET", "url": "/me", "headers": {"Authorization": "Bearer {{ACCESS_TOKEN}}"}}, "assertions": {}}
]`)

	s := newTestSession(t, "http://127.0.0.1:1", []string{dir}, io.Discard)
	_, err := s.execute(context.Background())

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitConfigError, exitErr.Code)
}

func startExampleMock(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	path := writeDefinitions(t, dir, definition.DefaultFile, exampleDefinitions)

	server := mock.NewServer()
	require.NoError(t, server.LoadFiles([]string{path}))
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

const currentUserDefinitions = `[
  {"name": "me", "request": {"method": "GET", "url": "/users/me", "headers": {"Authorization": "Bearer {{ACCESS_TOKEN}}"}},
   "assertions": {"name": {"validator": "exact", "expected": "Ada"}}}
]`

func TestRunSessionDirectLoginFromEnvFile(t *testing.T) {
	for _, name := range []string{env.LoginURLVar, env.LoginUsernameVar, env.LoginPasswordVar} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	ts := startExampleMock(t)

	dir := t.TempDir()
	writeDefinitions(t, dir, definition.DefaultFile, currentUserDefinitions)
	envFile := writeDefinitions(t, t.TempDir(), ".env", fmt.Sprintf(
		"%s=%s/auth/login\n%s=demo\n%s=demo\n",
		env.LoginURLVar, ts.URL, env.LoginUsernameVar, env.LoginPasswordVar))

	lookup, found, err := env.DotEnvLookup(envFile)
	require.NoError(t, err)
	require.True(t, found)

	s := newTestSession(t, ts.URL, []string{dir}, io.Discard)
	s.lookup = lookup

	result, err := s.execute(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 1, result.Passed)

	_, ok := os.LookupEnv(env.LoginURLVar)
	assert.False(t, ok, "env file values stay out of the process environment")
}

func TestRunSessionRewritesOutputFile(t *testing.T) {
	t.Setenv(env.LoginURLVar, "")
	ts := startExampleMock(t)

	dir := t.TempDir()
	writeDefinitions(t, dir, definition.DefaultFile, exampleDefinitions)

	s := newTestSession(t, ts.URL, []string{dir}, io.Discard)
	s.outputFile = filepath.Join(t.TempDir(), "report.json")

	var ids []string
	for range 2 {
		result, err := s.execute(context.Background())
		require.NoError(t, err)
		ids = append(ids, result.ID)
	}

	data, err := os.ReadFile(s.outputFile)
	require.NoError(t, err)

	var report output.JSONOutput
	require.NoError(t, json.Unmarshal(data, &report), "output file holds a single document")
	assert.Equal(t, ids[1], report.RunID)
	assert.Equal(t, 3, report.Summary.Passed)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	initCmd.SetOut(&out)
	defer initCmd.SetOut(nil)

	require.NoError(t, initCommand(initCmd, []string{dir}))
	assert.Contains(t, out.String(), "jsonprobe project initialized!")

	cfg, err := config.LoadConfig(filepath.Join(dir, "jsonprobe.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)

	cases, err := definition.LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, cases, 3)

	vars, err := env.LoadDotEnv(filepath.Join(dir, ".env.example"))
	require.NoError(t, err)
	assert.Equal(t, "demo", vars[env.LoginUsernameVar])

	err = initCommand(initCmd, []string{dir})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsageError, exitErr.Code)
}
