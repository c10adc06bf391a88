// Package pagination implements newest-first keyset paging over tables
// keyed by (created_at, id).
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid pagination cursor")

// Params is what a list endpoint accepts. Cursor is opaque to clients.
type Params struct {
	Limit  int
	Cursor string
}

// Size clamps Limit into [1, MaxLimit], defaulting when unset.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// Validate reports whether Cursor decodes.
func (p Params) Validate() error {
	_, err := Decode(p.Cursor)
	return err
}

// Cursor is the key of the last row on a page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// String encodes the cursor for a response body or query string.
func (c Cursor) String() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor produced by String. A blank value means the first
// page and yields nil.
func Decode(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	created, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: created, ID: uid}, nil
}

// Keyset scopes q to the rows after the cursor, newest first, and fetches
// one row beyond the page so Page can tell whether another page exists.
func Keyset(q *gorm.DB, p Params) (*gorm.DB, error) {
	after, err := Decode(p.Cursor)
	if err != nil {
		return nil, err
	}
	if after != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	return q.Order("created_at DESC").Order("id DESC").Limit(p.Size() + 1), nil
}

// Page cuts rows fetched through Keyset down to the page size and returns
// the cursor for the next page, empty on the last one.
func Page[T any](rows []T, p Params, key func(*T) Cursor) ([]T, string) {
	size := p.Size()
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, key(&rows[size-1]).String()
}
