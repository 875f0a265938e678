package assertions

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrUnknownValidator is returned when a validator name is not recognised.
var ErrUnknownValidator = errors.New("unknown validator")

// Validator identifies a comparison between an extracted response value and
// an expected value.
type Validator int

const (
	// Exact requires deep equality, including the JSON type.
	Exact Validator = iota + 1
	// Contains requires a string value containing the expected substring.
	Contains
)

var validatorNames = map[Validator]string{
	Exact:    "exact",
	Contains: "contains",
}

// Names lists the accepted validator names in declaration order.
func Names() []string {
	return []string{Exact.String(), Contains.String()}
}

// ParseValidator maps a validator name to its Validator.
func ParseValidator(name string) (Validator, error) {
	switch name {
	case "exact":
		return Exact, nil
	case "contains":
		return Contains, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownValidator, name, strings.Join(Names(), ", "))
	}
}

func (v Validator) String() string {
	if name, ok := validatorNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Validator(%d)", int(v))
}

func (v Validator) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Validator) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("validator must be a string: %w", err)
	}
	parsed, err := ParseValidator(name)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Result is the outcome of a single assertion.
type Result struct {
	Path      string
	Validator Validator
	Expected  any
	Actual    any
	Present   bool
	Passed    bool
	Message   string
}

// Validate runs v against actual and expected. An empty message means the
// assertion passed.
func (v Validator) Validate(actual, expected any) (bool, string) {
	switch v {
	case Exact:
		return exact(actual, expected)
	case Contains:
		return contains(actual, expected)
	default:
		return false, fmt.Sprintf("%v: %v", ErrUnknownValidator, v)
	}
}

// Check evaluates v for the value found at path. present reports whether the
// path resolved; an absent value is compared as nil.
func Check(v Validator, path string, actual any, present bool, expected any) *Result {
	passed, msg := v.Validate(actual, expected)
	return &Result{
		Path:      path,
		Validator: v,
		Expected:  expected,
		Actual:    actual,
		Present:   present,
		Passed:    passed,
		Message:   msg,
	}
}

func exact(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s, but got %s", quote(expected), quote(actual))
}

func contains(actual, expected any) (bool, string) {
	substr, ok := expected.(string)
	if !ok {
		return false, fmt.Sprintf("contains needs a string to search for, got %T", expected)
	}
	str, ok := actual.(string)
	if ok && strings.Contains(str, substr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s to contain %s", quote(actual), quote(expected))
}

func quote(v any) string {
	return fmt.Sprintf("'%v'", v)
}
