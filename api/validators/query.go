package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

func badQuery(key, msg string, extra ...any) error {
	details := map[string]any{"field": key}
	for i := 0; i+1 < len(extra); i += 2 {
		details[extra[i].(string)] = extra[i+1]
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// optionalQuery parses ?key with parse. Absent or blank yields nil.
func optionalQuery[T any](r *http.Request, key, want string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, badQuery(key, "query parameter must be "+want)
	}
	return &v, nil
}

// ParseQueryInt returns def when ?key is absent and rejects values outside
// [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v, err := optionalQuery(r, key, "numeric", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case v == nil:
		return def, nil
	case *v < lo || *v > hi:
		return 0, badQuery(key, "query parameter out of range", "min", lo, "max", hi)
	}
	return *v, nil
}

func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	return optionalQuery(r, key, "a uuid", uuid.Parse)
}

// ParseQueryTime accepts RFC3339 timestamps or bare YYYY-MM-DD dates, the
// latter read as midnight in loc.
func ParseQueryTime(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return optionalQuery(r, key, "a date", func(raw string) (time.Time, error) {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts, nil
		}
		return time.ParseInLocation(time.DateOnly, raw, loc)
	})
}

// PathUUID parses a chi URL parameter.
func PathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return id, nil
}
