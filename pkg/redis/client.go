// Package redis is the POS's Redis access layer: register transactions,
// sessions, rate limits, idempotency records and locks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

var ErrNotInitialized = errors.New("redis client not initialized")

// Commands is the go-redis surface the client relies on.
type Commands interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	GetDel(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// IdempotencyStore is what replay and dedupe guards need.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

type Client struct {
	Keyspace
	cmd  Commands
	conn *redis.Client
}

// New dials Redis from cfg and pings it before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return &Client{Keyspace: Keyspace(cfg.KeyPrefix), cmd: conn, conn: conn}, nil
}

// NewWithCmdable wraps any command implementation, such as redistest.Fake.
func NewWithCmdable(cmd Commands) *Client {
	return &Client{cmd: cmd}
}

// Options turns cfg into go-redis options. A URL wins over discrete fields;
// pool and timeout settings fill whatever the URL left unset.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}
	fillDur := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDur(&opts.DialTimeout, cfg.DialTimeout)
	fillDur(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDur(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

// IsNil reports a missing key.
func IsNil(err error) bool { return errors.Is(err, redis.Nil) }

func (c *Client) ready() error {
	if c == nil || c.cmd == nil {
		return ErrNotInitialized
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.cmd.Get(ctx, key).Result()
}

// GetDel reads and removes key in one round trip. Two callers racing on the
// same key cannot both see its value.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.cmd.GetDel(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// SetNX reports whether the key was created.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// FixedWindowAllow counts a hit against scope and reports whether it is
// within limit for the current window. The window starts at the first hit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	key := c.RateLimitKey(scope)
	hits, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if hits == 1 && window > 0 {
		if err := c.cmd.Expire(ctx, key, window).Err(); err != nil {
			return false, hits, err
		}
	}
	return hits <= limit, hits, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
