package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/env"
	jphttp "github.com/abdul-hamid-achik/jsonprobe/packages/http"
	"github.com/tidwall/gjson"
)

// DirectLoginTimeout bounds the request made to LOGIN_URL.
const DirectLoginTimeout = 10 * time.Second

var (
	// ErrNoLoginSource is returned when a token is needed but neither login source exists.
	ErrNoLoginSource = errors.New("ACCESS_TOKEN placeholder found but no login configuration or login test case is available")
	// ErrTokenNotFound is returned when a login response carries no usable token.
	ErrTokenNotFound = errors.New("no access token in login response")

	loginURLPattern = regexp.MustCompile(`(?i)auth.*login`)

	directTokenFields    = []string{"access_token", "token"}
	delegatedTokenFields = []string{"accessToken", "token"}
)

// Resolver obtains the access token for a run.
type Resolver struct {
	client      *jphttp.Client
	loginClient *jphttp.Client
	lookup      env.LookupFunc
	logger      *slog.Logger
}

type ResolverOption func(*Resolver)

// NewResolver creates a resolver. Delegated login replays cases through client,
// so it sees the same base URL and default headers as the run itself.
func NewResolver(client *jphttp.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: client,
		lookup: env.OS(),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.loginClient == nil {
		r.loginClient = jphttp.NewClient(
			jphttp.WithMaxRetries(0),
			jphttp.WithTimeout(DirectLoginTimeout),
		)
	}
	return r
}

// WithLookup sets where LOGIN_* variables are read from.
func WithLookup(lookup env.LookupFunc) ResolverOption {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

// WithLoginClient sets the client used for direct login.
func WithLoginClient(c *jphttp.Client) ResolverOption {
	return func(r *Resolver) {
		r.loginClient = c
	}
}

func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolve returns the session for cases. When no case needs the token the
// session is empty and no login is attempted.
func (r *Resolver) Resolve(ctx context.Context, cases []*definition.Case) (*Session, error) {
	if !RequiresAccessToken(cases) {
		return &Session{}, nil
	}

	if env.HasLoginURL(r.lookup) {
		r.logger.Debug("resolving access token via direct login")
		token, err := r.directLogin(ctx)
		if err != nil {
			return nil, err
		}
		return NewSession(token), nil
	}

	loginCase := FindLoginCase(cases)
	if loginCase == nil {
		return nil, ErrNoLoginSource
	}

	r.logger.Debug("resolving access token via login case", "case", loginCase.DisplayName())
	token, err := r.delegatedLogin(ctx, loginCase)
	if err != nil {
		return nil, err
	}
	return NewSession(token), nil
}

func (r *Resolver) directLogin(ctx context.Context) (string, error) {
	cfg, err := env.LoadLoginConfig(r.lookup)
	if err != nil {
		return "", err
	}

	resp, err := r.loginClient.Post(ctx, cfg.URL, map[string]string{
		"username": cfg.Username,
		"password": cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to contact login URL '%s': %w", cfg.URL, err)
	}

	token := extractToken(resp.Body, directTokenFields)
	if token == "" {
		return "", fmt.Errorf("%w from %s (expected 'access_token' or 'token')", ErrTokenNotFound, cfg.URL)
	}
	return token, nil
}

func (r *Resolver) delegatedLogin(ctx context.Context, loginCase *definition.Case) (string, error) {
	req := loginCase.Request
	resp, err := r.client.Do(ctx, &jphttp.Request{
		Method:   req.Method,
		Endpoint: req.URL,
		Params:   req.Params,
		Payload:  req.Payload,
		Headers:  req.Headers,
	})
	if err != nil {
		return "", fmt.Errorf("login case %q: %w", loginCase.DisplayName(), err)
	}

	token := extractToken(resp.Body, delegatedTokenFields)
	if token == "" {
		return "", fmt.Errorf("%w of case %q (expected 'accessToken' or 'token')", ErrTokenNotFound, loginCase.DisplayName())
	}
	return token, nil
}

// IsLoginURL reports whether url looks like a login endpoint (auth.*login, ignoring case).
func IsLoginURL(url string) bool {
	return loginURLPattern.MatchString(url)
}

// FindLoginCase returns the first case whose URL is a login endpoint.
func FindLoginCase(cases []*definition.Case) *definition.Case {
	for _, c := range cases {
		if c != nil && IsLoginURL(c.Request.URL) {
			return c
		}
	}
	return nil
}

// extractToken returns the first non-empty top-level field of body.
func extractToken(body []byte, fields []string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return ""
	}
	for _, field := range fields {
		v := doc.Get(field)
		if !v.Exists() || v.Type == gjson.Null || v.Type == gjson.False {
			continue
		}
		if token := v.String(); token != "" {
			return token
		}
	}
	return ""
}
