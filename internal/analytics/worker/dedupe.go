package worker

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
)

// Dedupe remembers which events a consumer has handled. Pub/Sub delivers at
// least once, so the same event id can arrive more than once.
type Dedupe interface {
	// Claim returns false when the event was already claimed.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets a claim so a redelivery is handled again.
	Release(ctx context.Context, eventID string) error
}

// RedisDedupe claims events with SET NX under a per-consumer scope.
type RedisDedupe struct {
	store    pkgredis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

func NewRedisDedupe(store pkgredis.IdempotencyStore, consumer string, ttl time.Duration) (*RedisDedupe, error) {
	switch {
	case store == nil:
		return nil, errors.New("dedupe store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("dedupe ttl must be non-negative")
	}
	return &RedisDedupe{store: store, consumer: consumer, ttl: ttl}, nil
}

func (d *RedisDedupe) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.store.SetNX(ctx, d.key(eventID), "1", d.ttl)
}

func (d *RedisDedupe) Release(ctx context.Context, eventID string) error {
	return d.store.Del(ctx, d.key(eventID))
}

func (d *RedisDedupe) key(eventID string) string {
	return d.store.IdempotencyKey("evt:"+d.consumer, eventID)
}
