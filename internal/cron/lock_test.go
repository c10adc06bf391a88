package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supserrr/vevurn-sub002/pkg/redis/redistest"
)

func TestRedisLockIsExclusive(t *testing.T) {
	client, fake := redistest.Client()
	lock, err := NewRedisLock(client, "vv:lock:cron-worker:test", 5*time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 5*time.Minute, fake.TTLs["vv:lock:cron-worker:test"])

	second, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, first.Release(ctx))
	third, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestStaleLeaseLeavesSuccessorAlone(t *testing.T) {
	client, fake := redistest.Client()
	lock, err := NewRedisLock(client, "k", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	stale, err := lock.Acquire(ctx)
	require.NoError(t, err)

	// the key expired and another replica took it
	fake.Data["k"] = "someone-else"

	require.NoError(t, stale.Release(ctx))
	assert.Equal(t, "someone-else", fake.Data["k"])
}

func TestReleaseAfterExpiryIsNoop(t *testing.T) {
	client, fake := redistest.Client()
	lock, err := NewRedisLock(client, "k", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, err := lock.Acquire(ctx)
	require.NoError(t, err)
	delete(fake.Data, "k")

	assert.NoError(t, lease.Release(ctx))
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)

	client, _ := redistest.Client()
	_, err = NewRedisLock(client, "", time.Minute)
	assert.Error(t, err)

	lock, err := NewRedisLock(client, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, lock.ttl)
}
