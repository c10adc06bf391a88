package types

import (
	"encoding/json"
	"time"

	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// Envelope is one relayed outbox event after the consumer has reconciled the
// message attributes with the stored envelope. Payload is the event's data
// object, still encoded.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}
