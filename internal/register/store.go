package register

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
)

const lockTTL = 15 * time.Second

// Store keeps each cashier's open transaction in Redis. Keys expire after the
// configured TTL, which is how abandoned carts are cleaned up.
type Store struct {
	redis *pkgredis.Client
	ttl   time.Duration
}

func NewStore(client *pkgredis.Client, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{redis: client, ttl: ttl}, nil
}

// Load returns the stored checkpoint, or nil when the cashier has none.
func (s *Store) Load(ctx context.Context, cashierID uuid.UUID) (*pos.Checkpoint, error) {
	raw, err := s.redis.Get(ctx, s.redis.TransactionKey(cashierID.String()))
	if err != nil {
		if pkgredis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var cp pos.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return nil, fmt.Errorf("decode register transaction: %w", err)
	}
	return &cp, nil
}

// Save writes the checkpoint and refreshes its TTL.
func (s *Store) Save(ctx context.Context, cashierID uuid.UUID, cp pos.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode register transaction: %w", err)
	}
	return s.redis.Set(ctx, s.redis.TransactionKey(cashierID.String()), payload, s.ttl)
}

func (s *Store) Delete(ctx context.Context, cashierID uuid.UUID) error {
	return s.redis.Del(ctx, s.redis.TransactionKey(cashierID.String()))
}

// Lock takes the per-cashier mutation lock. ok is false when another request
// holds it.
func (s *Store) Lock(ctx context.Context, cashierID uuid.UUID) (release func(), ok bool, err error) {
	key := s.redis.LockKey("register:" + cashierID.String())
	token := uuid.NewString()
	ok, err = s.redis.SetNX(ctx, key, token, lockTTL)
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() { s.unlock(key, token) }, true, nil
}

// unlock deletes key only while it still holds token. A request that ran
// past lockTTL must not free the lock of the request after it. Failures are
// left to the TTL.
func (s *Store) unlock(key, token string) {
	ctx := context.Background()
	current, err := s.redis.Get(ctx, key)
	if err != nil || current != token {
		return
	}
	_ = s.redis.Del(ctx, key)
}
