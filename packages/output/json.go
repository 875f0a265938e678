package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string       `json:"runId,omitempty"`
	Summary  JSONSummary  `json:"summary"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Tests    []JSONTest   `json:"tests"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONLatency holds response time percentiles in milliseconds
type JSONLatency struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name       string          `json:"name"`
	File       string          `json:"file"`
	Passed     bool            `json:"passed"`
	Skipped    bool            `json:"skipped,omitempty"`
	SkipReason string          `json:"skipReason,omitempty"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Request    *JSONRequest    `json:"request,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
}

// JSONRequest represents request details as written in the definition
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Params  map[string]any    `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
	Attempts   int               `json:"attempts"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Path      string `json:"path"`
	Validator string `json:"validator"`
	Expected  any    `json:"expected"`
	Actual    any    `json:"actual"`
	Present   bool   `json:"present"`
	Passed    bool   `json:"passed"`
	Message   string `json:"message,omitempty"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	runID   string
	latency *JSONLatency
	results []JSONTest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.runID = result.ID
	if l := result.Latency; l != nil {
		f.latency = &JSONLatency{
			Count: l.Count,
			Min:   ms(l.Min),
			Mean:  ms(l.Mean),
			P50:   ms(l.P50),
			P95:   ms(l.P95),
			P99:   ms(l.P99),
			Max:   ms(l.Max),
		}
	}

	for _, r := range result.Results {
		test := JSONTest{
			Name:     r.Name,
			File:     sourceOf(r),
			Passed:   r.Passed,
			Skipped:  r.Skipped,
			Duration: ms(r.Duration),
		}

		if r.Skipped {
			test.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			test.Error = r.Error.Error()
		}

		if r.Case != nil {
			test.Request = &JSONRequest{
				Method:  r.Case.Request.Method,
				URL:     r.Case.Request.URL,
				Params:  r.Case.Request.Params,
				Headers: r.Case.Request.Headers,
			}
		}

		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Duration:   ms(r.Response.Duration),
				Attempts:   r.Response.Attempts,
			}
		}

		if len(r.Assertions) > 0 {
			test.Assertions = make([]JSONAssertion, len(r.Assertions))
			for i, a := range r.Assertions {
				test.Assertions[i] = JSONAssertion{
					Path:      a.Path,
					Validator: a.Validator.String(),
					Expected:  a.Expected,
					Actual:    a.Actual,
					Present:   a.Present,
					Passed:    a.Passed,
					Message:   a.Message,
				}
			}
		}

		f.results = append(f.results, test)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, t := range f.results {
		if t.Skipped {
			skipped++
		} else if t.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		RunID: f.runID,
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Latency:  f.latency,
		Tests:    f.results,
		Duration: ms(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
