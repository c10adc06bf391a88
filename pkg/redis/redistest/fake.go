// Package redistest provides an in-memory stand-in for the go-redis commands
// the POS services use.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
)

type ExpireCall struct {
	Key string
	TTL time.Duration
}

// Fake implements the command subset behind pkg/redis.Client.
type Fake struct {
	mu          sync.Mutex
	Data        map[string]string
	TTLs        map[string]time.Duration
	Counters    map[string]int64
	ExpireCalls []ExpireCall
	// Err, when set, is returned by every command.
	Err error
}

var _ pkgredis.Commands = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Data:     map[string]string{},
		TTLs:     map[string]time.Duration{},
		Counters: map[string]int64{},
	}
}

// Client wraps a fresh Fake in a pkg/redis Client.
func Client() (*pkgredis.Client, *Fake) {
	fake := New()
	return pkgredis.NewWithCmdable(fake), fake
}

func (f *Fake) Ping(context.Context) *redis.StatusCmd {
	if f.Err != nil {
		return redis.NewStatusResult("", f.Err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *Fake) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return redis.NewStatusResult("", f.Err)
	}
	f.Data[key] = stringify(value)
	f.TTLs[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *Fake) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return redis.NewStringResult("", f.Err)
	}
	v, ok := f.Data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *Fake) GetDel(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return redis.NewStringResult("", f.Err)
	}
	v, ok := f.Data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.Data, key)
	delete(f.TTLs, key)
	return redis.NewStringResult(v, nil)
}

func (f *Fake) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return redis.NewBoolResult(false, f.Err)
	}
	if _, exists := f.Data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.Data[key] = stringify(value)
	f.TTLs[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return redis.NewIntResult(0, f.Err)
	}
	f.Counters[key]++
	return redis.NewIntResult(f.Counters[key], nil)
}

func (f *Fake) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExpireCalls = append(f.ExpireCalls, ExpireCall{Key: key, TTL: ttl})
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return redis.NewIntResult(0, f.Err)
	}
	var removed int64
	for _, key := range keys {
		if _, ok := f.Data[key]; ok {
			removed++
		}
		delete(f.Data, key)
		delete(f.TTLs, key)
	}
	return redis.NewIntResult(removed, nil)
}

func stringify(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
