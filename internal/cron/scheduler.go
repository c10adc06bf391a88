// Package cron runs the POS housekeeping jobs: outbox retention and the
// daily low-stock sweep. One replica at a time runs a cycle.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// SchedulerParams configure a Scheduler.
type SchedulerParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Now      func() time.Time
}

// Scheduler runs every job once per interval, starting immediately.
type Scheduler struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(p SchedulerParams) (*Scheduler, error) {
	if p.Lock == nil {
		return nil, errors.New("cron lock is required")
	}
	s := &Scheduler{
		logg:     p.Logger,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: p.Interval,
		now:      p.Now,
	}
	for _, j := range p.Jobs {
		if j != nil {
			s.jobs = append(s.jobs, j)
		}
	}
	if len(s.jobs) == 0 {
		return nil, errors.New("at least one cron job is required")
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run blocks until ctx ends. Cycle errors are logged, never fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		if err := s.Cycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Cycle runs every job under the lock. Jobs run in order and a failing job
// does not stop the ones after it.
func (s *Scheduler) Cycle(ctx context.Context) error {
	lease, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if lease == nil {
		s.logg.Debug(ctx, "cron lock held by another replica")
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	var errs error
	for _, job := range s.jobs {
		errs = multierr.Append(errs, s.runOne(ctx, job))
	}
	return errs
}

func (s *Scheduler) runOne(ctx context.Context, job Job) error {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	started := s.now()
	err := job.Run(ctx)
	finished := s.now()
	elapsed := finished.Sub(started)
	s.metrics.Observe(job.Name(), elapsed, finished, err)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(ctx, "cron job done")
	return nil
}
