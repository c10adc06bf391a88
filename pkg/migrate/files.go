package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	fileName   = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	unsafeName = regexp.MustCompile(`[^a-z0-9]+`)
)

const template = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// Slug lowercases name and collapses everything but letters and digits
// into single underscores.
func Slug(name string) string {
	return strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// Create writes an empty goose migration named <timestamp>_<slug>.sql into
// dir and returns its path.
func Create(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("migrate: dir is required")
	}
	slug := Slug(name)
	if slug == "" {
		return "", fmt.Errorf("migrate: name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}

	full := filepath.Join(dir, now.UTC().Format("20060102150405")+"_"+slug+".sql")
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, template, slug); err != nil {
		return "", fmt.Errorf("migrate: write %s: %w", full, err)
	}
	return full, nil
}

// Validate checks every .sql file at the root of fsys: goose naming, unique
// versions and both Up and Down sections.
func Validate(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	versions := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		m := fileName.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("migrate: %q is not named YYYYMMDDHHMMSS_name.sql", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("migrate: version %s used by %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migrate: %q has no %q section", name, marker)
			}
		}
	}
	return nil
}
