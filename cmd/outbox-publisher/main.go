package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/supserrr/vevurn-sub002/internal/bootstrap"
	"github.com/supserrr/vevurn-sub002/internal/relay"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
)

func main() {
	status := flag.Bool("status", false, "print the backlog and recent dead letters, then exit")
	requeue := flag.String("requeue", "", "put a dead-lettered event id back in line, then exit")
	flag.Parse()

	rt := bootstrap.Start("outbox-publisher")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	ctx, stop := rt.Context()
	defer stop()

	dbClient := rt.Database(ctx)
	events := outbox.NewRepository(dbClient.DB())
	letters := outbox.NewDeadLetters(dbClient.DB())

	switch {
	case *requeue != "":
		id, err := uuid.Parse(*requeue)
		rt.Must("requeue", err)
		rt.Must("requeue", letters.Requeue(ctx, id))
		logg.Info(logg.WithField(ctx, "event_id", id.String()), "dead letter requeued")
		return
	case *status:
		rt.Must("status", printStatus(ctx, events, letters))
		return
	}

	catalog, err := relay.NewCatalog(cfg.PubSub)
	rt.Must("event catalog", err)

	sink := relay.NewPubSubSink(rt.PubSub(ctx))
	rt.OnClose("pubsub publishers", func() error { sink.Close(); return nil })

	rel, err := relay.New(relay.Params{
		Config:      cfg.Outbox,
		Logger:      logg,
		DB:          dbClient,
		Store:       events,
		DeadLetters: letters,
		Catalog:     catalog,
		Sink:        sink,
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	rt.Must("outbox relay", err)

	rt.ServeMetrics(ctx)
	logg.Info(logg.WithField(ctx, "topics", catalog.Topics()), "outbox relay started")
	if err := rel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Must("outbox relay", err)
	}
	logg.Info(ctx, "outbox relay stopped")
}

func printStatus(ctx context.Context, events *outbox.Repository, letters *outbox.DeadLetters) error {
	pending, err := events.CountPending(ctx)
	if err != nil {
		return err
	}
	recent, err := letters.Recent(ctx, 20)
	if err != nil {
		return err
	}
	fmt.Printf("pending events: %d\n\n", pending)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT ID\tTYPE\tREASON\tATTEMPTS\tFAILED AT")
	for _, d := range recent {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.EventID, d.EventType, d.ErrorReason, d.AttemptCount, d.FailedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}
