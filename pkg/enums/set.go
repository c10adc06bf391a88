// Package enums holds the string-backed enumerations stored in the database
// and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

// set is the closed list of values an enum accepts.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

// parse matches raw exactly; kind names the enum in the error.
func (s set[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

func (s set[T]) values() []T {
	return slices.Clone(s)
}
