package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/env"
	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
)

// Lock hands out at most one Lease at a time across replicas. Acquire
// returns a nil Lease when someone else holds it.
type Lock interface {
	Acquire(ctx context.Context) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SET NX lock whose TTL caps how long a crashed holder
// blocks the others.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis is required for the cron lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (Lease, error) {
	token := env.WorkerID() + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLease{lock: l, token: token}, nil
}

type redisLease struct {
	lock  *RedisLock
	token string
}

// Release deletes the key only while it still holds this lease's token, so
// a lease that outlived its TTL cannot free a successor's lock.
func (r *redisLease) Release(ctx context.Context) error {
	current, err := r.lock.store.Get(ctx, r.lock.key)
	switch {
	case pkgredis.IsNil(err):
		return nil
	case err != nil:
		return fmt.Errorf("read %s: %w", r.lock.key, err)
	case current != r.token:
		return nil
	}
	return r.lock.store.Del(ctx, r.lock.key)
}
