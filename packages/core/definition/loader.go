package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// FilePattern matches definition files inside a directory.
	FilePattern = "test_definition*.json"
	// DefaultFile is loaded when no file matches FilePattern.
	DefaultFile = "test_definitions.json"
)

var (
	// ErrNotList is reported when a definition file's top level is not an array.
	ErrNotList = errors.New("does not contain a list of test cases")
	// ErrNoDefinitions is reported when a directory has no definition files.
	ErrNoDefinitions = errors.New("no test definition files found")
)

// LoadError names the definition file that failed to load.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("test definitions file %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Discover returns the definition files in dir in sorted filename order.
// When nothing matches FilePattern, DefaultFile is returned if it exists.
func Discover(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, FilePattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	if len(files) == 0 {
		fallback := filepath.Join(dir, DefaultFile)
		if _, err := os.Stat(fallback); err == nil {
			files = []string{fallback}
		}
	}

	return files, nil
}

// LoadDir discovers and loads every definition file in dir.
func LoadDir(dir string) ([]*Case, error) {
	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s (expected %s or %s)", ErrNoDefinitions, dir, FilePattern, DefaultFile)
	}
	return LoadFiles(files)
}

// LoadFiles loads files in the given order and concatenates their cases.
func LoadFiles(paths []string) ([]*Case, error) {
	var cases []*Case
	for _, path := range paths {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, loaded...)
	}
	return cases, nil
}

// LoadFile reads a single definition file.
func LoadFile(path string) ([]*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	cases, err := Parse(data)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	for i, c := range cases {
		c.Source = path
		c.Index = i
	}
	return cases, nil
}

// Parse decodes a definition document after validating its structure.
func Parse(data []byte) ([]*Case, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if _, ok := doc.([]any); !ok {
		return nil, ErrNotList
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var cases []*Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, err
	}

	for i, c := range cases {
		if c == nil {
			return nil, fmt.Errorf("case %d is null", i)
		}
	}
	return cases, nil
}
