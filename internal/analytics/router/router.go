// Package router turns relayed POS events into BigQuery rows.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/supserrr/vevurn-sub002/internal/analytics/types"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer is the BigQuery side of the pipeline.
type Writer interface {
	InsertSaleLines(ctx context.Context, rows []types.SaleLineRow) error
	InsertStock(ctx context.Context, row types.StockEventRow) error
}

// Handler replaces the built-in treatment of one event type. payload is a
// pointer to the event's payloads struct, already decoded.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type route func(ctx context.Context, envelope types.Envelope, raw json.RawMessage) error

// bind decodes the payload into T before calling fn, or override when set.
func bind[T any](fn func(context.Context, types.Envelope, *T) error, override Handler) route {
	return func(ctx context.Context, env types.Envelope, raw json.RawMessage) error {
		payload := new(T)
		if err := json.Unmarshal(raw, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		if override != nil {
			return override.Handle(ctx, env, payload)
		}
		return fn(ctx, env, payload)
	}
}

type Router struct {
	routes map[enums.OutboxEventType]route
}

// NewRouter wires the sale and stock handlers. places is the number of
// minor-unit digits of the shop currency; amounts are stored as integers.
func NewRouter(writer Writer, logg *logger.Logger, places int32, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	case places < 0:
		return nil, errors.New("currency places must be non-negative")
	}

	b := &builder{writer: writer, logg: logg, places: places}
	return &Router{routes: map[enums.OutboxEventType]route{
		enums.EventSaleCompleted: bind(b.saleCompleted, overrides[enums.EventSaleCompleted]),
		enums.EventSaleVoided:    bind(b.saleVoided, overrides[enums.EventSaleVoided]),
		enums.EventStockLow:      bind(b.stockLow, overrides[enums.EventStockLow]),
	}}, nil
}

// Handle routes one envelope by its event type.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	return rt(ctx, envelope, envelope.Payload)
}
