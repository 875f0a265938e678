package http

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrRequestFailed is returned when the retry loop ends without a response
// and without a recorded error.
var ErrRequestFailed = errors.New("request failed without an error")

// HTTPError reports a response with a status code of 400 or above.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %s", e.Method, e.URL, status)
}

// Retryable reports whether the status is a server error.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500
}

// NetworkError reports a transport failure such as a timeout or a refused
// connection. Network errors are always retryable.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline being exceeded.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DecodeError reports a response body that is not valid JSON.
type DecodeError struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding JSON response from %s (status %d): %v", e.URL, e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err should trigger another attempt.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
