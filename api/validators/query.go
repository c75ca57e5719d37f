package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

const dateLayout = time.DateOnly

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryError(msg, key string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt reads an optional bounded integer, returning fallback when
// the parameter is absent.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := query(r, key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, queryError("query parameter must be numeric", key, nil)
	case n < lo || n > hi:
		return 0, queryError("query parameter out of range", key, map[string]any{"min": lo, "max": hi})
	}
	return n, nil
}

// RequireQuery returns the trimmed value or a validation error naming key.
func RequireQuery(r *http.Request, key string) (string, error) {
	raw := query(r, key)
	if raw == "" {
		return "", queryError("query parameter is required", key, nil)
	}
	return raw, nil
}

// ParseQueryDate accepts RFC3339 or YYYY-MM-DD. With endOfDay a bare date
// resolves to the last instant of that day, so it works as an inclusive
// upper bound.
func ParseQueryDate(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	raw := query(r, key)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, queryError("query parameter must be a date", key, map[string]any{"format": "YYYY-MM-DD"})
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
