// Package bootstrap is the startup sequence every vevurn binary shares:
// environment, config, logger, backing services and shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/supserrr/vevurn-sub002/pkg/bigquery"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/migrate"
	"github.com/supserrr/vevurn-sub002/pkg/pubsub"
	"github.com/supserrr/vevurn-sub002/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Runtime carries config and logger for one process and closes whatever it
// opened, newest first.
type Runtime struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(int)
}

// Start loads .env when present, then config, then builds the leveled
// logger. It exits the process when config is invalid.
func Start(kind string) *Runtime {
	early := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		early.Debug(context.Background(), ".env not loaded, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		early.Error(context.Background(), "invalid configuration", err)
		os.Exit(1)
	}
	cfg.Service.Kind = kind
	return &Runtime{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       cfg.App.LogLevel,
			WarnStack:   cfg.App.LogWarnStack,
		}),
		exit: os.Exit,
	}
}

// Must stops the process when err is set, closing resources first.
func (rt *Runtime) Must(what string, err error) {
	if err == nil {
		return
	}
	rt.Logger.Error(context.Background(), fmt.Sprintf("%s: startup failed", what), err)
	rt.Close()
	rt.exit(1)
}

// OnClose registers fn to run from Close.
func (rt *Runtime) OnClose(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Close runs registered closers in reverse order and logs failures.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(); err != nil {
			rt.Logger.Error(context.Background(), "closing "+c.name, err)
		}
	}
	rt.closers = nil
}

// Context is cancelled on SIGINT or SIGTERM and carries env and service kind
// as log fields.
func (rt *Runtime) Context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Kind,
	}), stop
}

// ServeMetrics exposes the default registry when a metrics address is set.
func (rt *Runtime) ServeMetrics(ctx context.Context) {
	if rt.Config.App.MetricsAddr != "" {
		metrics.Serve(ctx, rt.Config.App.MetricsAddr, prometheus.DefaultGatherer, rt.Logger)
	}
}

// Database connects and, in dev, applies pending migrations.
func (rt *Runtime) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	rt.Must("database", err)
	rt.OnClose("database", client.Close)
	rt.Must("dev migrations", migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client))
	return client
}

func (rt *Runtime) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	rt.Must("redis", err)
	rt.OnClose("redis", client.Close)
	return client
}

func (rt *Runtime) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	rt.Must("pubsub", err)
	rt.OnClose("pubsub", client.Close)
	return client
}

func (rt *Runtime) BigQuery(ctx context.Context) *bigquery.Client {
	client, err := bigquery.NewClient(ctx, rt.Config.GCP, rt.Config.BigQuery, rt.Logger)
	rt.Must("bigquery", err)
	rt.OnClose("bigquery", client.Close)
	return client
}
