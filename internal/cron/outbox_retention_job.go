package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

const (
	defaultPublishedRetention  = 7 * 24 * time.Hour
	defaultDeadLetterRetention = 30 * 24 * time.Hour
)

// Pruner deletes everything older than cutoff and reports how much went.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrunerFunc adapts a plain delete function such as
// outbox.Repository.DeletePublishedBefore.
type PrunerFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f PrunerFunc) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

type OutboxRetentionJobParams struct {
	Logger *logger.Logger
	// Published prunes relayed outbox rows.
	Published          Pruner
	PublishedRetention time.Duration
	// DeadLetters is optional; nil keeps dead letters forever.
	DeadLetters         Pruner
	DeadLetterRetention time.Duration
	Now                 func() time.Time
}

type retentionTarget struct {
	name   string
	pruner Pruner
	keep   time.Duration
}

type outboxRetentionJob struct {
	logg    *logger.Logger
	targets []retentionTarget
	now     func() time.Time
}

// NewOutboxRetentionJob keeps the outbox tables bounded. Unpublished rows
// are only ever removed together with their expired dead letter.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Published == nil {
		return nil, errors.New("published outbox pruner required")
	}
	job := &outboxRetentionJob{logg: p.Logger, now: p.Now}
	if job.now == nil {
		job.now = time.Now
	}
	job.targets = append(job.targets, retentionTarget{"published", p.Published, orDefault(p.PublishedRetention, defaultPublishedRetention)})
	if p.DeadLetters != nil {
		job.targets = append(job.targets, retentionTarget{"dead_letters", p.DeadLetters, orDefault(p.DeadLetterRetention, defaultDeadLetterRetention)})
	}
	return job, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes every target even when an earlier one fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	for _, t := range j.targets {
		cutoff := now.Add(-t.keep)
		n, err := t.pruner.PruneBefore(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune %s: %w", t.name, err))
			continue
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"target":  t.name,
			"cutoff":  cutoff,
			"deleted": n,
		}), "outbox retention pruned")
	}
	return errs
}
