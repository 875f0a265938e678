package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
)

// TokenPlaceholder is replaced by the session token in header values.
const TokenPlaceholder = "{{ACCESS_TOKEN}}"

// ErrMissingToken is returned when a header needs the token but none was resolved.
var ErrMissingToken = errors.New("ACCESS_TOKEN placeholder found but no session token is available")

// Session carries the token resolved for one run.
type Session struct {
	Token string
}

func NewSession(token string) *Session {
	return &Session{Token: token}
}

// HasToken reports whether a non-empty token is available. It is safe on a nil Session.
func (s *Session) HasToken() bool {
	return s != nil && s.Token != ""
}

// Apply returns a copy of headers with every placeholder replaced by the token.
// The input map is never modified. Nil or empty headers yield nil.
func (s *Session) Apply(headers map[string]string) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}

	resolved := make(map[string]string, len(headers))
	for name, value := range headers {
		if strings.Contains(value, TokenPlaceholder) {
			if !s.HasToken() {
				return nil, fmt.Errorf("header %s: %w", name, ErrMissingToken)
			}
			value = strings.ReplaceAll(value, TokenPlaceholder, s.Token)
		}
		resolved[name] = value
	}
	return resolved, nil
}

// RequiresAccessToken reports whether any case header uses the placeholder.
func RequiresAccessToken(cases []*definition.Case) bool {
	for _, c := range cases {
		if c == nil {
			continue
		}
		for _, value := range c.Request.Headers {
			if strings.Contains(value, TokenPlaceholder) {
				return true
			}
		}
	}
	return false
}
