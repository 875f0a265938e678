// Package auth obtains the access token used by test cases and applies it to
// request headers.
//
// A token is only resolved when some case header contains the
// {{ACCESS_TOKEN}} placeholder. It comes from one of two sources, tried in order:
//   - Direct login: POST credentials from LOGIN_URL, LOGIN_USERNAME and LOGIN_PASSWORD
//   - Delegated login: replay the first case whose URL looks like a login endpoint
//
// The resolved token lives in a Session value that callers pass to the runner.
package auth
