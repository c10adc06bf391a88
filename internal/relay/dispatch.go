package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

func (o outcome) String() string {
	switch o {
	case outcomePublished:
		return "published"
	case outcomeRetry:
		return "retry"
	case outcomeDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// classify decides what happens to a row after its attempt-th send.
func classify(err error, attempt, maxAttempts int) (outcome, enums.OutboxDLQErrorReason) {
	switch {
	case err == nil:
		return outcomePublished, ""
	case errors.Is(err, errUnknownEvent):
		return outcomeDeadLetter, enums.OutboxDLQReasonUnknownEvent
	case errors.Is(err, ErrPoison):
		return outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable
	case attempt >= maxAttempts:
		return outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts
	default:
		return outcomeRetry, ""
	}
}

// settle records the outcome of one row inside the batch transaction.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, attempt int, sendErr error) (outcome, error) {
	out, reason := classify(sendErr, attempt, r.maxAttempts)
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt":        attempt,
		"outcome":        out.String(),
	})

	switch out {
	case outcomePublished:
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return out, fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.metrics.Published(string(row.EventType))
		r.logg.Debug(ctx, "outbox event relayed")

	case outcomeRetry:
		if err := r.store.MarkFailedTx(tx, row.ID, sendErr); err != nil {
			return out, fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		r.metrics.Failed(string(row.EventType))
		r.logg.Warn(r.logg.WithField(ctx, "error", sendErr.Error()), "outbox relay will retry")

	case outcomeDeadLetter:
		msg := sendErr.Error()
		entry := models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   reason,
			ErrorMessage:  &msg,
			AttemptCount:  attempt,
			FailedAt:      r.now().UTC(),
		}
		if err := r.deadLetters.InsertTx(tx, entry); err != nil {
			return out, fmt.Errorf("dead-letter %s: %w", row.ID, err)
		}
		if err := r.store.MarkTerminalTx(tx, row.ID, sendErr, r.maxAttempts); err != nil {
			return out, fmt.Errorf("mark %s terminal: %w", row.ID, err)
		}
		r.metrics.DeadLettered(string(reason))
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"reason": reason, "error": msg}), "outbox event dead-lettered")
	}
	return out, nil
}

// pacer spaces out polls: steady when healthy, doubling up to a ceiling on
// consecutive batch errors.
type pacer struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
	jitter  func(time.Duration) time.Duration
}

func newPacer(base, ceiling time.Duration, jitter func(time.Duration) time.Duration) *pacer {
	if ceiling < base {
		ceiling = base
	}
	if jitter == nil {
		jitter = func(time.Duration) time.Duration { return 0 }
	}
	return &pacer{base: base, ceiling: ceiling, current: base, jitter: jitter}
}

func (p *pacer) healthy() time.Duration {
	p.current = p.base
	return p.base + p.jitter(p.base)
}

func (p *pacer) failing() time.Duration {
	p.current *= 2
	if p.current > p.ceiling {
		p.current = p.ceiling
	}
	return p.current + p.jitter(p.current)
}
