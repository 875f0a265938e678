package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultRequestTimeout is used when a request does not set its own timeout.
const DefaultRequestTimeout = 15 * time.Second

// Request describes a single call. Params and Headers belong to the caller
// and are never modified by the client.
type Request struct {
	Method   string
	Endpoint string
	Params   map[string]any
	Payload  any
	Headers  map[string]string
	Timeout  time.Duration
}

// ResolveURL joins endpoint onto baseURL with exactly one slash between
// them. Endpoints that already start with "http" are returned unchanged, as
// is every endpoint when baseURL is empty.
func ResolveURL(baseURL, endpoint string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" || strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}

// NormalizeParams returns a copy of params with boolean values replaced by
// "true" or "false". A nil map stays nil and an empty map stays empty.
func NormalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	normalized := make(map[string]any, len(params))
	for k, v := range params {
		if b, ok := v.(bool); ok {
			normalized[k] = strconv.FormatBool(b)
			continue
		}
		normalized[k] = v
	}
	return normalized
}

// MergeHeaders copies defaults into a new map and overlays overrides.
func MergeHeaders(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// BuildURL appends params to rawURL's query string, keeping any query that
// is already present. Nil values are dropped and sequences become repeated
// keys.
func BuildURL(rawURL string, params map[string]any) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := u.Query()
	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
		case []any:
			for _, item := range v {
				if item != nil {
					q.Add(k, formatParam(item))
				}
			}
		case []string:
			for _, item := range v {
				q.Add(k, item)
			}
		default:
			q.Add(k, formatParam(v))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatParam(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// encodePayload serializes payload as JSON. A nil payload produces no body.
func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}
	return data, nil
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}
