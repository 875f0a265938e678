package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/assertions"
	"github.com/abdul-hamid-achik/jsonprobe/packages/auth"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/http"
	"github.com/abdul-hamid-achik/jsonprobe/packages/nested"
	"github.com/google/uuid"
)

const (
	SkipFiltered  = "filtered out"
	SkipBail      = "stopped after earlier failure"
	SkipCancelled = "run cancelled"
)

type Runner struct {
	client  *http.Client
	session *auth.Session
	config  *Config
	logger  *slog.Logger
}

type Config struct {
	// NameFilter selects cases by name; '*' at either end is a wildcard.
	NameFilter string
	// Bail stops the run at the first failing case.
	Bail bool
	// Timeout overrides the client's per-request timeout when positive.
	Timeout time.Duration
}

type Option func(*Runner)

// WithSession sets the session whose token replaces header placeholders.
func WithSession(s *auth.Session) Option {
	return func(r *Runner) {
		r.session = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(client *http.Client, cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if client == nil {
		client = http.NewClient()
	}

	r := &Runner{
		client:  client,
		session: &auth.Session{},
		config:  cfg,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type RunResult struct {
	ID        string
	StartedAt time.Time
	Results   []*CaseResult
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
	Latency   *LatencySummary
}

// Success reports whether no case failed.
func (r *RunResult) Success() bool {
	return r.Failed == 0
}

type CaseResult struct {
	Name       string
	Case       *definition.Case
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Response   *http.Response
	Assertions []*assertions.Result
	Error      error
}

const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

func (c *CaseResult) Status() string {
	switch {
	case c.Skipped:
		return StatusSkipped
	case c.Passed:
		return StatusPassed
	default:
		return StatusFailed
	}
}

// FailureMessage explains a failed or skipped case. It is empty for passing cases.
func (c *CaseResult) FailureMessage() string {
	switch {
	case c.Skipped:
		return c.SkipReason
	case c.Error != nil:
		return c.Error.Error()
	}
	if a := c.FailedAssertion(); a != nil {
		return fmt.Sprintf("%s (%s): %s", a.Path, a.Validator, a.Message)
	}
	return ""
}

// FailedAssertion returns the assertion that failed the case, if any.
func (c *CaseResult) FailedAssertion() *assertions.Result {
	for _, a := range c.Assertions {
		if !a.Passed {
			return a
		}
	}
	return nil
}

// Run executes cases sequentially in the given order.
func (r *Runner) Run(ctx context.Context, cases []*definition.Case) *RunResult {
	start := time.Now()
	result := &RunResult{
		ID:        uuid.NewString(),
		StartedAt: start,
	}
	latency := newLatencyRecorder()

	stopReason := ""
	for _, c := range cases {
		if stopReason == "" && ctx.Err() != nil {
			stopReason = SkipCancelled
		}
		if stopReason != "" {
			result.add(skipped(c, stopReason))
			continue
		}

		if !r.shouldRun(c) {
			result.add(skipped(c, SkipFiltered))
			continue
		}

		caseResult := r.RunCase(ctx, c)
		if caseResult.Response != nil {
			latency.record(caseResult.Response.Duration)
		}
		result.add(caseResult)

		if !caseResult.Passed {
			if errors.Is(caseResult.Error, context.Canceled) {
				stopReason = SkipCancelled
			} else if r.config.Bail {
				stopReason = SkipBail
			}
		}
	}

	result.Duration = time.Since(start)
	result.Latency = latency.summary()
	return result
}

func (r *RunResult) add(c *CaseResult) {
	r.Results = append(r.Results, c)
	switch {
	case c.Skipped:
		r.Skipped++
	case c.Passed:
		r.Passed++
	default:
		r.Failed++
	}
}

func skipped(c *definition.Case, reason string) *CaseResult {
	return &CaseResult{
		Name:       c.DisplayName(),
		Case:       c,
		Skipped:    true,
		SkipReason: reason,
	}
}

func (r *Runner) shouldRun(c *definition.Case) bool {
	if r.config.NameFilter == "" {
		return true
	}
	return matchesPattern(c.DisplayName(), r.config.NameFilter)
}

// RunCase sends one case's request and evaluates its assertions in order.
// The case fails at the first request error or unmet assertion.
func (r *Runner) RunCase(ctx context.Context, c *definition.Case) *CaseResult {
	result := &CaseResult{
		Name: c.DisplayName(),
		Case: c,
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	headers, err := r.session.Apply(c.Request.Headers)
	if err != nil {
		result.Error = err
		return result
	}

	resp, err := r.client.Do(ctx, &http.Request{
		Method:   c.Request.Method,
		Endpoint: c.Request.URL,
		Params:   c.Request.Params,
		Payload:  c.Request.Payload,
		Headers:  headers,
		Timeout:  r.config.Timeout,
	})
	if err != nil {
		r.logger.Debug("request failed", "case", result.Name, "status", http.StatusCode(err), "error", err)
		result.Error = err
		return result
	}
	result.Response = resp
	r.logger.Debug("response received", "case", result.Name, "status", resp.StatusCode,
		"content_type", resp.ContentType(), "attempts", resp.Attempts, "duration", resp.Duration)

	result.Passed = true
	for _, a := range c.Assertions {
		actual, present := nested.Get(resp.JSON, a.Path)
		check := assertions.Check(a.Validator, a.Path, actual, present, a.Expected)
		result.Assertions = append(result.Assertions, check)
		if !check.Passed {
			result.Passed = false
			break
		}
	}

	return result
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}
