package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
)

const maxLastErrorLen = 1024

var errNoTx = errors.New("transaction required")

// Repository reads and settles outbox_events rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func pending(tx *gorm.DB) *gorm.DB { return tx.Where("published_at IS NULL") }

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish claims up to limit pending rows with attempts to
// spare, oldest first. Postgres skips rows another relay already holds.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Scopes(pending)
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector != nil && tx.Dialector.Name() == dbpkg.DriverPostgres {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return settle(tx, id, map[string]any{"published_at": time.Now().UTC(), "last_error": nil})
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return settle(tx, id, map[string]any{"last_error": lastError(err), "attempt_count": gorm.Expr("attempt_count + 1")})
}

// MarkTerminalTx pins the attempt count at terminalAttempts so the row is
// never claimed again. It stays unpublished; the DLQ holds its copy.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return settle(tx, id, map[string]any{"last_error": lastError(err), "attempt_count": terminalAttempts})
}

func settle(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

// DeletePublishedBefore drops rows published before cutoff.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// CountPending is the outbox backlog.
func (r *Repository) CountPending(ctx context.Context) (n int64, err error) {
	err = r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Scopes(pending).Count(&n).Error
	return n, err
}

func lastError(err error) *string {
	if err == nil {
		return nil
	}
	msg := clip(err.Error(), maxLastErrorLen)
	return &msg
}
