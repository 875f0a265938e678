package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 2
	// DefaultBackoffFactor is the base delay in seconds between attempts
	DefaultBackoffFactor = 0.5
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// RequestIDHeader is set on every attempt unless the caller provides it
	RequestIDHeader = "X-Request-Id"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Client struct {
	httpClient     *http.Client
	baseURL        string
	defaultHeaders map[string]string
	maxRetries     int
	backoffFactor  float64
	timeout        time.Duration
	validateSSL    bool
	proxyURL       string
	requestIDs     bool
	limiter        *rate.Limiter
	sleep          Sleeper
	logger         *slog.Logger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		defaultHeaders: make(map[string]string),
		maxRetries:     DefaultMaxRetries,
		backoffFactor:  DefaultBackoffFactor,
		timeout:        DefaultRequestTimeout,
		validateSSL:    true,
		requestIDs:     true,
		sleep:          sleepContext,
		logger:         slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			c.logger.Warn("ignoring invalid proxy URL", "proxy", c.proxyURL, "error", err)
		}
	}

	c.httpClient = &http.Client{
		Transport: transport,
	}

	return c
}

// WithBaseURL sets the URL that relative endpoints are resolved against.
// Trailing slashes are removed.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithDefaultHeaders copies headers into the client's defaults. Later
// changes to the caller's map are not seen by the client.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithMaxRetries sets how many times a failed attempt is retried.
// Negative values are treated as zero.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
	}
}

// WithBackoffFactor sets the base delay, in seconds, between attempts.
func WithBackoffFactor(seconds float64) ClientOption {
	return func(c *Client) {
		if seconds < 0 {
			seconds = 0
		}
		c.backoffFactor = seconds
	}
}

// WithTimeout sets the per-attempt timeout for requests that do not set one.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithRateLimit paces attempts to at most perSecond requests per second.
// Zero disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRequestIDs controls the per-attempt X-Request-Id header.
func WithRequestIDs(enabled bool) ClientOption {
	return func(c *Client) {
		c.requestIDs = enabled
	}
}

func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		c.sleep = s
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DefaultHeaders returns a copy of the client's default headers.
func (c *Client) DefaultHeaders() map[string]string {
	return MergeHeaders(c.defaultHeaders, nil)
}

// Backoff returns the pause after the given zero-based failed attempt.
func (c *Client) Backoff(attempt int) time.Duration {
	seconds := c.backoffFactor * math.Pow(2, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// Do sends req, retrying network failures and server errors up to the
// configured limit. Responses below 400 are decoded as JSON and returned.
// A 4xx response fails at once with an *HTTPError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	target := ResolveURL(c.baseURL, req.Endpoint)

	if err := ValidateURL(target); err != nil {
		return nil, err
	}

	fullURL, err := BuildURL(target, NormalizeParams(req.Params))
	if err != nil {
		return nil, err
	}

	body, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	headers := MergeHeaders(c.defaultHeaders, req.Headers)
	if body != nil && !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = "application/json"
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.attempt(ctx, method, fullURL, body, headers, timeout)
		if err == nil {
			resp.Attempts = attempt + 1
			return c.decode(resp, fullURL)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxRetries {
			delay := c.Backoff(attempt)
			c.logger.Debug("retrying request",
				"method", method, "url", fullURL, "attempt", attempt+1, "delay", delay, "error", err)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	if lastErr != nil {
		c.logger.Debug("retries exhausted", "method", method, "url", fullURL, "error", lastErr)
		return nil, lastErr
	}
	return nil, ErrRequestFailed
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, headers map[string]string, timeout time.Duration) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, url, bodyReader(body))
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if c.requestIDs && httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	c.logger.Debug("sending request", "method", method, "url", url)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, &NetworkError{Method: method, URL: url, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: url, Err: err}
	}

	c.logger.Debug("received response",
		"method", method, "url", url, "status", httpResp.StatusCode, "duration", duration)

	if httpResp.StatusCode >= 400 {
		return nil, &HTTPError{
			Method:     method,
			URL:        url,
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       respBody,
		}
	}

	headersOut := make(map[string]string)
	for k := range httpResp.Header {
		headersOut[k] = httpResp.Header.Get(k)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headersOut,
		Body:       respBody,
		Duration:   duration,
	}, nil
}

func (c *Client) decode(resp *Response, url string) (*Response, error) {
	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, &DecodeError{URL: url, StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}
	resp.JSON = decoded
	return resp, nil
}

func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:   "GET",
		Endpoint: endpoint,
		Params:   params,
	})
}

func (c *Client) Post(ctx context.Context, endpoint string, payload any) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:   "POST",
		Endpoint: endpoint,
		Payload:  payload,
	})
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q in %q (only http and https are allowed; set a base URL for relative endpoints)", u.Scheme, rawURL)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
