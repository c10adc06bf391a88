package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef names the staff member whose action raised the event. Scheduled
// jobs leave it nil.
type ActorRef struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and sent as
// the Pub/Sub message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
