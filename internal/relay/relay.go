// Package relay moves committed outbox rows onto Pub/Sub.
//
// Each poll claims a batch inside one transaction (SKIP LOCKED on Postgres),
// publishes every row with its aggregate id as ordering key and settles the
// row as published, retried or dead-lettered before the transaction commits.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	backoffCeiling      = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

// Database is the slice of pkg/db the relay needs.
type Database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// Store claims and settles outbox rows.
type Store interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

// DeadLetters keeps rows the relay gave up on.
type DeadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

// Sink delivers a prepared message and blocks until the broker acknowledges it.
type Sink interface {
	Ping(context.Context) error
	Send(context.Context, Message) error
}

// Params configures a Relay.
type Params struct {
	Config      config.OutboxConfig
	Logger      *logger.Logger
	DB          Database
	Store       Store
	DeadLetters DeadLetters
	Catalog     *Catalog
	Sink        Sink
	Metrics     *metrics.OutboxMetrics
	Now         func() time.Time
}

// Relay drains the outbox. Several relays may run against one database.
type Relay struct {
	logg        *logger.Logger
	db          Database
	store       Store
	deadLetters DeadLetters
	catalog     *Catalog
	sink        Sink
	metrics     *metrics.OutboxMetrics
	now         func() time.Time

	batch       int
	maxAttempts int
	poll        time.Duration
}

// New validates params and applies defaults for unset tuning values.
func New(p Params) (*Relay, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("relay: database is required")
	case p.Store == nil:
		return nil, errors.New("relay: outbox store is required")
	case p.DeadLetters == nil:
		return nil, errors.New("relay: dead letter store is required")
	case p.Catalog == nil:
		return nil, errors.New("relay: event catalog is required")
	case p.Sink == nil:
		return nil, errors.New("relay: sink is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		deadLetters: p.DeadLetters,
		catalog:     p.Catalog,
		sink:        p.Sink,
		metrics:     p.Metrics,
		now:         p.Now,
		batch:       p.Config.BatchSize,
		maxAttempts: p.Config.MaxAttempts,
		poll:        time.Duration(p.Config.PollIntervalMS) * time.Millisecond,
	}
	if r.logg == nil {
		r.logg = logger.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.batch <= 0 {
		r.batch = fallbackBatch
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = fallbackMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another; an empty or partial batch waits one poll interval.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("relay: database not ready: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("relay: sink not ready: %w", err)
	}

	pace := newPacer(r.poll, backoffCeiling, func(d time.Duration) time.Duration {
		return rand.N(min(d, maxJitter) + 1)
	})
	for {
		n, err := r.Drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = pace.failing()
		case n >= r.batch:
			pace.healthy()
			continue
		default:
			wait = pace.healthy()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Drain relays one batch and reports how many rows it claimed. After a
// retryable failure the remaining rows of that aggregate are left for the
// next batch so they never overtake it.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)

		held := make(map[uuid.UUID]struct{})
		for _, row := range rows {
			if _, ok := held[row.AggregateID]; ok {
				continue
			}
			out, err := r.settle(ctx, tx, row, row.AttemptCount+1, r.send(ctx, row))
			if err != nil {
				return err
			}
			if out == outcomeRetry {
				held[row.AggregateID] = struct{}{}
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent) error {
	msg, err := r.catalog.Prepare(row)
	if err != nil {
		return err
	}
	return r.sink.Send(ctx, msg)
}
