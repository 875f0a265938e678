// Package http provides the HTTP client used to execute jsonprobe test cases.
//
// It wraps the standard library's http package with:
//   - Base URL resolution for relative endpoints
//   - Query parameter normalization (booleans become "true"/"false")
//   - Non-destructive merging of default and per-request headers
//   - Bounded retries with exponential backoff on network errors and 5xx
//   - JSON decoding of every response body
//   - Optional request pacing and per-attempt request IDs
package http
