package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
	"github.com/supserrr/vevurn-sub002/pkg/outbox/payloads"
)

var (
	// ErrPoison marks a row that can never be published as stored.
	ErrPoison = errors.New("relay: poison event")

	errUnknownEvent = fmt.Errorf("%w: unknown event type", ErrPoison)
)

// Message is a row ready to hand to a Sink.
type Message struct {
	Topic       string
	OrderingKey string
	Data        []byte
	Attributes  map[string]string
	EventID     string
}

// route binds one event type to its aggregate and destination topic.
type route struct {
	aggregate enums.OutboxAggregateType
	topic     string
	check     func(json.RawMessage) error
}

// Catalog knows every event the POS emits and where each one goes.
type Catalog struct {
	routes map[enums.OutboxEventType]route
}

// NewCatalog wires sale and stock events to the configured sales topic.
func NewCatalog(cfg config.PubSubConfig) (*Catalog, error) {
	topic := strings.TrimSpace(cfg.SalesTopic)
	if topic == "" {
		return nil, errors.New("sales topic is required")
	}
	return &Catalog{routes: map[enums.OutboxEventType]route{
		enums.EventSaleCompleted: {aggregate: enums.AggregateSale, topic: topic, check: decodes[payloads.SaleCompletedEvent]},
		enums.EventSaleVoided:    {aggregate: enums.AggregateSale, topic: topic, check: decodes[payloads.SaleVoidedEvent]},
		enums.EventStockLow:      {aggregate: enums.AggregateProduct, topic: topic, check: decodes[payloads.StockLowEvent]},
	}}, nil
}

func decodes[T any](data json.RawMessage) error {
	var v T
	return json.Unmarshal(data, &v)
}

// Topics returns the distinct destination topics, sorted.
func (c *Catalog) Topics() []string {
	set := map[string]struct{}{}
	for _, r := range c.routes {
		set[r.topic] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Prepare validates a stored row and builds the outgoing message. Rows sharing
// an aggregate share an ordering key so a sale's completion precedes its void.
func (c *Catalog) Prepare(row models.OutboxEvent) (Message, error) {
	r, ok := c.routes[row.EventType]
	if !ok {
		return Message{}, fmt.Errorf("%w %q", errUnknownEvent, row.EventType)
	}
	if row.AggregateType != r.aggregate {
		return Message{}, fmt.Errorf("%w: %s belongs to %s, row says %s", ErrPoison, row.EventType, r.aggregate, row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return Message{}, fmt.Errorf("%w: aggregate id missing", ErrPoison)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return Message{}, fmt.Errorf("%w: envelope: %v", ErrPoison, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Message{}, fmt.Errorf("%w: %s has no data", ErrPoison, row.EventType)
	}
	if err := r.check(data); err != nil {
		return Message{}, fmt.Errorf("%w: %s data: %v", ErrPoison, row.EventType, err)
	}

	eventID := env.EventID
	if eventID == "" {
		eventID = row.ID.String()
	}
	occurred := env.OccurredAt
	if occurred.IsZero() {
		occurred = row.CreatedAt
	}

	return Message{
		Topic:       r.topic,
		OrderingKey: row.AggregateID.String(),
		Data:        row.Payload,
		EventID:     eventID,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    occurred.UTC().Format(time.RFC3339Nano),
		},
	}, nil
}
