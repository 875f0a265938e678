package env

import "os"

// LookupFunc returns the value of a variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// OS looks variables up in the process environment.
func OS() LookupFunc {
	return os.LookupEnv
}

// FromMap looks variables up in a fixed map.
func FromMap(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// Layered consults each lookup in order and returns the first hit.
func Layered(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Get returns the value of key, or "" when lookup is nil or the key is unset.
func (l LookupFunc) Get(key string) string {
	if l == nil {
		return ""
	}
	v, _ := l(key)
	return v
}
