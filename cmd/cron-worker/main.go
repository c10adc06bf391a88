package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supserrr/vevurn-sub002/internal/bootstrap"
	"github.com/supserrr/vevurn-sub002/internal/cron"
	product "github.com/supserrr/vevurn-sub002/internal/products"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
)

func main() {
	rt := bootstrap.Start("cron-worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	ctx, stop := rt.Context()
	defer stop()

	dbClient := rt.Database(ctx)
	redisClient := rt.Redis(ctx)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	rt.Must("cron lock", err)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:              logg,
		Published:           cron.PrunerFunc(outboxRepo.DeletePublishedBefore),
		PublishedRetention:  cfg.Outbox.Retention,
		DeadLetters:         outbox.NewDeadLetters(dbClient.DB()),
		DeadLetterRetention: cfg.Outbox.DLQRetention,
	})
	rt.Must("outbox retention job", err)

	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:   logg,
		DB:       dbClient,
		Products: product.NewRepository(dbClient.DB()),
		Outbox:   outbox.NewService(outboxRepo, logg),
		Alerts:   redisClient,
		EventFor: func(p *models.Product) outbox.DomainEvent {
			return product.StockLowEvent(p, nil, nil)
		},
		Location: cfg.POS.Location(),
	})
	rt.Must("low stock job", err)

	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Jobs:     []cron.Job{retention, lowStock},
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	rt.Must("cron scheduler", err)

	rt.ServeMetrics(ctx)
	logg.Info(ctx, "cron worker started")
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Must("cron scheduler", err)
	}
	logg.Info(ctx, "cron worker stopped")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
