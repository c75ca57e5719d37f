// Package enums holds the closed string sets stored on ledger rows and
// accepted at the API boundary.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the ordered list of values a string enum accepts.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

// parse trims raw and matches it exactly. Use parseFold for inputs that
// arrive in mixed case.
func (s set[T]) parse(kind, raw string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}

func (s set[T]) parseFold(kind, raw string) (T, error) {
	for _, v := range s {
		if strings.EqualFold(string(v), strings.TrimSpace(raw)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
