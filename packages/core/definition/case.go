package definition

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/jsonprobe/packages/assertions"
)

// Case is one declarative HTTP request plus the assertions on its response.
type Case struct {
	Name       string     `json:"name"`
	Request    Request    `json:"request"`
	Assertions Assertions `json:"assertions,omitempty"`

	// Source is the definition file the case was read from.
	Source string `json:"-"`
	// Index is the zero-based position of the case within Source.
	Index int `json:"-"`
}

type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Params  map[string]any    `json:"params,omitempty"`
	Payload any               `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Assertion checks the value found at Path in the response body.
type Assertion struct {
	Path      string               `json:"-"`
	Validator assertions.Validator `json:"validator"`
	Expected  any                  `json:"expected"`
}

// Assertions keeps the order in which assertions appear in the file.
type Assertions []Assertion

// DisplayName returns the case name, or "METHOD url" for unnamed cases.
func (c *Case) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL)
}

func (a *Assertions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("assertions must be an object keyed by response path")
	}

	result := Assertions{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		path, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected assertion key %v", keyTok)
		}

		var assertion Assertion
		if err := dec.Decode(&assertion); err != nil {
			return fmt.Errorf("assertion %q: %w", path, err)
		}
		assertion.Path = path
		result = append(result, assertion)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*a = result
	return nil
}

func (a Assertions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, assertion := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(assertion.Path)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(assertion)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
