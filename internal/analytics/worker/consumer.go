// Package worker receives relayed sale and stock events and hands them to
// the analytics router exactly once per event id.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/internal/analytics/router"
	"github.com/supserrr/vevurn-sub002/internal/analytics/types"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
)

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// Receiver is implemented by *pubsub.Subscriber.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type verdict bool

const (
	ack  verdict = true
	nack verdict = false
)

// Consumer acks malformed and duplicate messages so they are not redelivered
// forever, and nacks handler failures after releasing the dedupe claim.
type Consumer struct {
	recv    Receiver
	handler Handler
	dedupe  Dedupe
	logg    *logger.Logger
}

func NewConsumer(recv Receiver, handler Handler, dedupe Dedupe, logg *logger.Logger) (*Consumer, error) {
	switch {
	case recv == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case dedupe == nil:
		return nil, errors.New("dedupe is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Consumer{recv: recv, handler: handler, dedupe: dedupe, logg: logg}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.recv.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.consume(ctx, msg) == ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) consume(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = c.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decode(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping undecodable analytics message")
		return ack
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":     env.EventID,
		"event_type":   env.EventType,
		"aggregate_id": env.AggregateID,
	})

	fresh, err := c.dedupe.Claim(ctx, env.EventID)
	if err != nil {
		c.logg.Error(ctx, "dedupe claim failed", err)
		return nack
	}
	if !fresh {
		c.logg.Debug(ctx, "duplicate analytics event")
		return ack
	}

	switch err := c.handler.Handle(ctx, env); {
	case err == nil:
		c.logg.Debug(ctx, "analytics event stored")
		return ack
	case errors.Is(err, router.ErrUnsupportedEventType):
		c.logg.Warn(ctx, "no analytics handler for event type")
		return ack
	default:
		c.logg.Error(ctx, "analytics handler failed", err)
		if relErr := c.dedupe.Release(ctx, env.EventID); relErr != nil {
			c.logg.Error(ctx, "dedupe release failed", relErr)
		}
		return nack
	}
}

// decode lifts routing attributes out of msg and pairs them with the stored
// envelope. The envelope's own id and timestamp win over attributes.
func decode(msg *gcppubsub.Message) (types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return types.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, err
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, err
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id attribute missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return types.Envelope{}, fmt.Errorf("event id %q: %w", eventID, err)
	}

	occurred := stored.OccurredAt
	if occurred.IsZero() {
		if t, err := time.Parse(time.RFC3339Nano, attr("occurred_at")); err == nil {
			occurred = t
		}
	}
	if occurred.IsZero() {
		occurred = msg.PublishTime
	}

	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurred.UTC(),
		Payload:       stored.Data,
	}, nil
}
