package env

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultDotEnvFile is read from the working directory when no file is given.
const DefaultDotEnvFile = ".env"

// LoadDotEnv parses a .env file and returns key-value pairs.
// Supports: KEY=value, export KEY=value, KEY="quoted value", KEY='single quoted', # comments
// The values are not exported to the process environment; see DotEnvLookup.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		result[key] = unquote(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

// DotEnvLookup layers the process environment over the variables in path.
// Variables already present in the process environment win, even when empty.
// A missing file is treated as empty; the bool reports whether one was read.
func DotEnvLookup(path string) (LookupFunc, bool, error) {
	if path == "" {
		path = DefaultDotEnvFile
	}
	vars, err := LoadDotEnv(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return OS(), false, nil
		}
		return nil, false, err
	}
	return Layered(OS(), FromMap(vars)), true, nil
}
