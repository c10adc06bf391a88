package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided it must match the violated constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if diag, ok := pkgerrors.PostgresDiagnostics(err); ok && diag.Code == pgUniqueViolation {
		return constraintName == "" || diag.Constraint == constraintName
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
