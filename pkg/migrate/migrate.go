// Package migrate applies the goose SQL migrations that ship inside the
// binary, and creates or lints migration files on disk.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Runner drives a goose provider against one database.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, fsys fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if fsys == nil {
		fsys = Embedded()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.report(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the newest applied migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.report(ctx, result)
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// To moves the schema up or down to version (YYYYMMDDHHMMSS).
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("migrate: invalid version %q, expected YYYYMMDDHHMMSS", version)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: current version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case target > current:
		results, err = r.provider.UpTo(ctx, target)
	case target < current:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.report(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate to %d: %w", target, err)
	}
	return nil
}

// Status lists every known migration with its applied state.
func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return r.provider.Status(ctx)
}

func (r *Runner) report(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			r.logg.Error(logCtx, "migration failed", res.Error)
			continue
		}
		r.logg.Info(logCtx, "migration applied")
	}
}
