package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
)

const maxDLQErrorLen = 1024

// ErrNotDeadLettered is returned by Requeue when the event has no DLQ entry
// or its outbox row is gone or already published.
var ErrNotDeadLettered = errors.New("event is not dead-lettered")

// DeadLetters stores events the relay gave up on and lets an operator put
// them back in line.
type DeadLetters struct {
	db *gorm.DB
}

func NewDeadLetters(db *gorm.DB) *DeadLetters {
	return &DeadLetters{db: db}
}

// InsertTx records entry in the relay's batch transaction.
func (d *DeadLetters) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// Recent lists the newest entries first.
func (d *DeadLetters) Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := d.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Requeue resets the attempts on the outbox row behind eventID and drops
// its DLQ entries so the relay claims it again on the next poll.
func (d *DeadLetters) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries int64
		if err := tx.Model(&models.OutboxDLQ{}).Where("event_id = ?", eventID).Count(&entries).Error; err != nil {
			return err
		}
		if entries == 0 {
			return fmt.Errorf("%s: %w", eventID, ErrNotDeadLettered)
		}
		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: outbox row missing or published: %w", eventID, ErrNotDeadLettered)
		}
		return tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{}).Error
	})
}

// PruneBefore forgets dead letters that failed before cutoff together with
// their unpublished outbox rows. Rows that were requeued and later published
// are left to the published-row retention.
func (d *DeadLetters) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var pruned int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.OutboxDLQ{}).Select("event_id").Where("failed_at < ?", cutoff)
		if err := tx.Where("id IN (?) AND published_at IS NULL", expired).Delete(&models.OutboxEvent{}).Error; err != nil {
			return fmt.Errorf("delete dead-lettered outbox rows: %w", err)
		}
		res := tx.Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
		pruned = res.RowsAffected
		return res.Error
	})
	return pruned, err
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
