package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is what gets logged for a failed request: the chain plus any
// Postgres diagnostics, whichever driver produced them.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string
	PG         PGDiagnostics
}

// PGDiagnostics mirrors the fields shared by pgconn.PgError and pq.Error.
type PGDiagnostics struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.code
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.PG, _ = PostgresDiagnostics(err)
	return d
}

// PostgresDiagnostics extracts server diagnostics from a pgx or lib/pq error.
func PostgresDiagnostics(err error) (PGDiagnostics, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return PGDiagnostics{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGDiagnostics{}, false
}

// Fields flattens the dump for structured logging, skipping empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error_top": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	pg := map[string]string{
		"pg_code":       d.PG.Code,
		"pg_constraint": d.PG.Constraint,
		"pg_table":      d.PG.Table,
		"pg_column":     d.PG.Column,
		"pg_detail":     d.PG.Detail,
		"pg_message":    d.PG.Message,
	}
	for k, v := range pg {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
