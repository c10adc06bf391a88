// Package outbox writes domain events into outbox_events inside the caller's
// transaction. The relay publishes them after commit.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

const envelopeVersion = 1

// DomainEvent is what services hand to Emit. Data is marshalled to JSON as
// the envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// row builds the stored form of e. The envelope's event id is the row id, so
// a dead-lettered copy and the published message name the same event.
func (e DomainEvent) row(id uuid.UUID, now time.Time) (models.OutboxEvent, error) {
	if !e.EventType.IsValid() {
		return models.OutboxEvent{}, fmt.Errorf("outbox: unknown event type %q", e.EventType)
	}
	if e.AggregateID == uuid.Nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: %s has no aggregate id", e.EventType)
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: encode %s: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    e.Version,
		EventID:    id.String(),
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = envelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: encode envelope: %w", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit inserts event through tx, so the row commits or rolls back with the
// state change it describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox: transaction required")
	}
	eventID := uuid.New()
	row, err := event.row(eventID, s.now())
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("outbox: insert %s: %w", event.EventType, err)
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":     eventID.String(),
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}
