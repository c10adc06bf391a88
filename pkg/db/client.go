// Package db owns the GORM connection shared by every repository.
package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Client struct {
	conn *gorm.DB
}

// Pinger is what health checks need from a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

func dialect(cfg config.DBConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverPostgres:
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// New opens the pool described by cfg. SQLite is for local runs and tests.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	d, err := dialect(cfg)
	if err != nil {
		return nil, err
	}
	if logg == nil {
		logg = logger.Nop()
	}

	conn, err := gorm.Open(d, &gorm.Config{
		Logger:                 gormlogger.New(queryLog{logg}, gormlogger.Config{SlowThreshold: cfg.SlowQuery, LogLevel: gormlogger.Warn, IgnoreRecordNotFoundError: true}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	logg.Info(logg.WithField(ctx, "db_driver", d.Name()), "database connection established")
	return &Client{conn: conn}, nil
}

// NewFromGorm wraps an open connection, mostly for tests.
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in a transaction that commits only when fn returns nil.
// A panic inside fn rolls back and propagates.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}

// ForUpdate adds FOR UPDATE on Postgres. SQLite already serialises writers.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

// queryLog sends GORM's slow-query and error lines to the service logger.
type queryLog struct {
	logg *logger.Logger
}

func (q queryLog) Printf(format string, args ...any) {
	ctx := q.logg.WithField(context.Background(), "component", "gorm")
	q.logg.Warn(ctx, strings.TrimSpace(fmt.Sprintf(format, args...)))
}
