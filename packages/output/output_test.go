package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/jsonprobe/packages/assertions"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"
	jphttp "github.com/abdul-hamid-achik/jsonprobe/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *runner.RunResult {
	users := "defs/test_definition_users.json"
	orders := "defs/test_definition_orders.json"

	return &runner.RunResult{
		ID:        "run-123",
		StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:  250 * time.Millisecond,
		Passed:    1,
		Failed:    2,
		Skipped:   1,
		Latency:   &runner.LatencySummary{Count: 3, P50: 20 * time.Millisecond, P95: 40 * time.Millisecond, P99: 40 * time.Millisecond, Max: 41 * time.Millisecond},
		Results: []*runner.CaseResult{
			{
				Name:     "get user",
				Case:     &definition.Case{Name: "get user", Source: users, Request: definition.Request{Method: "GET", URL: "users/1"}},
				Passed:   true,
				Duration: 20 * time.Millisecond,
				Response: &jphttp.Response{StatusCode: 200, Status: "200 OK", Attempts: 1},
				Assertions: []*assertions.Result{
					{Path: "name", Validator: assertions.Exact, Expected: "Ada", Actual: "Ada", Present: true, Passed: true},
				},
			},
			{
				Name:     "user name",
				Case:     &definition.Case{Name: "user name", Source: users, Request: definition.Request{Method: "GET", URL: "users/2"}},
				Duration: 30 * time.Millisecond,
				Response: &jphttp.Response{StatusCode: 200, Status: "200 OK", Attempts: 2},
				Assertions: []*assertions.Result{
					{Path: "name", Validator: assertions.Exact, Expected: "Ada", Actual: "Bob", Present: true, Message: "expected 'Ada', but got 'Bob'"},
				},
			},
			{
				Name:     "list orders",
				Case:     &definition.Case{Name: "list orders", Source: orders, Request: definition.Request{Method: "GET", URL: "orders"}},
				Duration: 40 * time.Millisecond,
				Error:    errors.New("GET http://api/orders: HTTP 404 Not Found"),
			},
			{
				Name:       "cancel order",
				Case:       &definition.Case{Name: "cancel order", Source: orders},
				Skipped:    true,
				SkipReason: runner.SkipBail,
			},
		},
	}
}

func TestConsoleFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatHeader("v1.0.0")
	f.FormatResult(sampleResult())
	f.FormatError(errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "jsonprobe v1.0.0")
	assert.Contains(t, out, "Running: defs/test_definition_users.json")
	assert.Contains(t, out, "Running: defs/test_definition_orders.json")
	assert.Contains(t, out, "✓ get user (20ms)")
	assert.Contains(t, out, "✗ user name (30ms)")
	assert.Contains(t, out, "→ name exact")
	assert.Contains(t, out, `Expected: "Ada"`)
	assert.Contains(t, out, `Actual:   "Bob"`)
	assert.Contains(t, out, "expected 'Ada', but got 'Bob'")
	assert.Contains(t, out, "HTTP 404 Not Found")
	assert.Contains(t, out, "- cancel order (stopped after earlier failure)")
	assert.Contains(t, out, "1 passed, 2 failed, 1 skipped, 4 total")
	assert.Contains(t, out, "Latency: p50 20ms, p95 40ms, p99 40ms, max 41ms")
	assert.Contains(t, out, "Error: boom")

	assert.Less(t, strings.Index(out, "users.json"), strings.Index(out, "orders.json"))
}

func TestConsoleFormatter_HidesFilteredUnlessVerbose(t *testing.T) {
	result := &runner.RunResult{
		Skipped: 1,
		Results: []*runner.CaseResult{{Name: "other", Skipped: true, SkipReason: runner.SkipFiltered}},
	}

	var quiet bytes.Buffer
	NewConsoleFormatter(WithWriter(&quiet), WithNoColor(true)).FormatResult(result)
	assert.NotContains(t, quiet.String(), "other")

	var verbose bytes.Buffer
	NewConsoleFormatter(WithWriter(&verbose), WithNoColor(true), WithVerbose(true)).FormatResult(result)
	assert.Contains(t, verbose.String(), "- other (filtered out)")
}

func TestConsoleFormatter_MissingValue(t *testing.T) {
	result := &runner.RunResult{
		Failed: 1,
		Results: []*runner.CaseResult{{
			Name: "missing",
			Assertions: []*assertions.Result{
				{Path: "user.email", Validator: assertions.Exact, Expected: "a@b.c", Message: "expected 'a@b.c', but got '<nil>'"},
			},
		}},
	}

	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatResult(result)
	assert.Contains(t, buf.String(), "Actual:   (missing)")
	assert.Contains(t, buf.String(), "Running: jsonprobe")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "run-123", out.RunID)
	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, out.Summary)
	assert.Equal(t, float64(1000), out.Duration)
	require.NotNil(t, out.Latency)
	assert.Equal(t, 40.0, out.Latency.P95)

	require.Len(t, out.Tests, 4)
	assert.Equal(t, "defs/test_definition_users.json", out.Tests[0].File)
	assert.Equal(t, "users/1", out.Tests[0].Request.URL)
	assert.Equal(t, 200, out.Tests[0].Response.StatusCode)

	failed := out.Tests[1]
	assert.False(t, failed.Passed)
	require.Len(t, failed.Assertions, 1)
	assert.Equal(t, "name", failed.Assertions[0].Path)
	assert.Equal(t, "exact", failed.Assertions[0].Validator)
	assert.Equal(t, "Bob", failed.Assertions[0].Actual)
	assert.Equal(t, 2, failed.Response.Attempts)

	assert.Contains(t, out.Tests[2].Error, "404")
	assert.Equal(t, runner.SkipBail, out.Tests[3].SkipReason)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	assert.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	assert.Equal(t, "jsonprobe", suites.Name)
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)

	require.Len(t, suites.TestSuites, 2)
	users := suites.TestSuites[0]
	assert.Equal(t, "defs/test_definition_users.json", users.Name)
	assert.Equal(t, 2, users.Tests)
	require.NotNil(t, users.TestCases[1].Failure)
	assert.Equal(t, "expected 'Ada', but got 'Bob'", users.TestCases[1].Failure.Message)
	assert.Contains(t, users.TestCases[1].Failure.Content, `name exact: expected "Ada", got "Bob"`)

	orders := suites.TestSuites[1]
	require.NotNil(t, orders.TestCases[0].Error)
	assert.Contains(t, orders.TestCases[0].Error.Message, "404")
	require.NotNil(t, orders.TestCases[1].Skipped)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "TAP version 13\n1..4\n"))
	assert.Contains(t, out, "ok 1 - get user\n")
	assert.Contains(t, out, "not ok 2 - user name\n")
	assert.Contains(t, out, `    - "name exact: expected 'Ada', but got 'Bob'"`)
	assert.Contains(t, out, "not ok 3 - list orders\n")
	assert.Contains(t, out, "severity: error")
	assert.Contains(t, out, "ok 4 - cancel order # SKIP stopped after earlier failure\n")
	assert.Contains(t, out, "# run run-123\n")
	assert.Contains(t, out, "# latency p50=20ms p95=40ms p99=40ms max=41ms\n")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil, 10))
	assert.Equal(t, `"Ada"`, formatValue("Ada", 10))
	assert.Equal(t, "42", formatValue(float64(42), 10))
	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 10))
	assert.Equal(t, "{object with 1 keys}", formatValue(map[string]any{"a": 1}, 10))
	assert.Equal(t, `"1234...`, formatValue("1234567890", 5))
}

func TestFormatValue_TruncatesOnRuneBoundary(t *testing.T) {
	got := formatValue("héllo wörld ☃☃☃", 4)
	assert.True(t, utf8.ValidString(got), "%q", got)
	assert.Equal(t, `"hél...`, got)

	assert.Equal(t, `"日本語"`, formatValue("日本語", 5))
}

func TestJSONFormatter_FractionalMilliseconds(t *testing.T) {
	result := &runner.RunResult{
		ID: "run-fast",
		Results: []*runner.CaseResult{{
			Name:     "fast",
			Passed:   true,
			Duration: 750 * time.Microsecond,
			Response: &jphttp.Response{StatusCode: 200, Duration: 1500 * time.Microsecond},
		}},
	}

	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(result)
	require.NoError(t, f.Flush(2250*time.Microsecond))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2.25, out.Duration)
	require.Len(t, out.Tests, 1)
	assert.Equal(t, 0.75, out.Tests[0].Duration)
	assert.Equal(t, 1.5, out.Tests[0].Response.Duration)
}
