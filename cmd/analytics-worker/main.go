package main

import (
	"context"
	"errors"

	"github.com/supserrr/vevurn-sub002/internal/analytics/router"
	"github.com/supserrr/vevurn-sub002/internal/analytics/worker"
	"github.com/supserrr/vevurn-sub002/internal/analytics/writer"
	"github.com/supserrr/vevurn-sub002/internal/bootstrap"
)

const consumerName = "analytics"

func main() {
	rt := bootstrap.Start("analytics-worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	ctx, stop := rt.Context()
	defer stop()

	dedupe, err := worker.NewRedisDedupe(rt.Redis(ctx), consumerName, cfg.Eventing.OutboxIdempotencyTTL)
	rt.Must("dedupe", err)

	sub := rt.PubSub(ctx).AnalyticsSubscription()
	if sub == nil {
		rt.Must("analytics subscription", errors.New("VEVURN_PUBSUB_ANALYTICS_SUBSCRIPTION is empty"))
	}

	bq, err := writer.New(rt.BigQuery(ctx), writer.Config{
		SalesTable: cfg.BigQuery.SalesTable,
		StockTable: cfg.BigQuery.StockTable,
		BatchSize:  cfg.BigQuery.BatchSize,
		Retry:      writer.Retry{Attempts: cfg.BigQuery.MaxAttempts},
	})
	rt.Must("bigquery writer", err)

	handler, err := router.NewRouter(bq, logg, cfg.POS.CurrencyPlaces, nil)
	rt.Must("analytics router", err)

	consumer, err := worker.NewConsumer(sub, handler, dedupe, logg)
	rt.Must("analytics consumer", err)

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		bq.Run(ctx, cfg.BigQuery.FlushEvery, func(err error) {
			logg.Error(ctx, "flushing analytics rows", err)
		})
	}()

	logg.Info(ctx, "analytics worker started")
	err = consumer.Run(ctx)
	stop()
	<-flushed
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Must("analytics consumer", err)
	}
	logg.Info(ctx, "analytics worker stopped")
}
