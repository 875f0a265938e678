package nested

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator splits a path into segments.
const Separator = "."

// Get walks data along path and returns the value found there. The second
// result reports whether the value is present; a JSON null that exists in
// the document is returned as (nil, true).
//
// A missing map key does not stop the walk on its own: the current value
// becomes absent and the next segment, if any, ends the walk because an
// absent value is neither a map nor a sequence.
func Get(data any, path string) (any, bool) {
	current := data
	present := true

	for _, segment := range strings.Split(path, Separator) {
		if !present {
			return nil, false
		}

		switch node := current.(type) {
		case []any:
			idx, ok := index(segment)
			if !ok || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case map[string]any:
			current, present = node[segment]
		default:
			return nil, false
		}
	}

	if !present {
		return nil, false
	}
	return current, true
}

// MaxSetIndex is the largest sequence index Set will create.
const MaxSetIndex = 10_000

// ErrIndexTooLarge is returned by Set for a numeric segment above MaxSetIndex.
var ErrIndexTooLarge = fmt.Errorf("sequence index exceeds %d", MaxSetIndex)

// Set stores value at path inside root, creating intermediate maps and
// sequences as needed. Numeric segments create sequences, padded with nulls
// up to the index. Existing scalars along the way are replaced. Root is left
// unchanged when an index exceeds MaxSetIndex.
func Set(root map[string]any, path string, value any) error {
	segments := strings.Split(path, Separator)
	for _, segment := range segments[1:] {
		if idx, ok := index(segment); ok && idx > MaxSetIndex {
			return fmt.Errorf("path %q: %w", path, ErrIndexTooLarge)
		}
	}

	head := segments[0]
	if len(segments) == 1 {
		root[head] = value
		return nil
	}
	root[head] = assign(root[head], segments[1:], value)
	return nil
}

func assign(node any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}

	segment := segments[0]
	if idx, ok := index(segment); ok {
		seq, _ := node.([]any)
		if len(seq) <= idx {
			seq = append(seq, make([]any, idx+1-len(seq))...)
		}
		seq[idx] = assign(seq[idx], segments[1:], value)
		return seq
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	m[segment] = assign(m[segment], segments[1:], value)
	return m
}

// index parses a non-negative decimal segment. Signs, spaces and empty
// segments are rejected.
func index(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for i := 0; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return idx, true
}
