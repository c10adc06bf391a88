package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
	"github.com/supserrr/vevurn-sub002/pkg/outbox/payloads"
)

func TestDrainPublishesWithAggregateOrderingKey(t *testing.T) {
	saleID := uuid.New()
	row := saleRow(t, saleID, enums.EventSaleCompleted, 0)
	store := &memStore{rows: []models.OutboxEvent{row}}
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	r := newTestRelay(t, store, sink, &memDLQ{}, metrics.NewOutboxMetrics(reg))

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uuid.UUID{row.ID}, store.published)

	require.Len(t, sink.sent, 1)
	msg := sink.sent[0]
	require.Equal(t, "vv-sales-events", msg.Topic)
	require.Equal(t, saleID.String(), msg.OrderingKey)
	require.Equal(t, "sale.completed", msg.Attributes["event_type"])
	require.Equal(t, "sale", msg.Attributes["aggregate_type"])
	require.NotEmpty(t, msg.Attributes["occurred_at"])
	require.Equal(t, 1.0, counter(t, reg, "outbox_events_published_total"))
}

func TestDrainHoldsLaterRowsOfAFailedAggregate(t *testing.T) {
	stuck, other := uuid.New(), uuid.New()
	completed := saleRow(t, stuck, enums.EventSaleCompleted, 0)
	voided := saleRow(t, stuck, enums.EventSaleVoided, 0)
	unrelated := saleRow(t, other, enums.EventSaleCompleted, 0)
	store := &memStore{rows: []models.OutboxEvent{completed, voided, unrelated}}
	sink := &recordingSink{fail: map[string]error{stuck.String(): errors.New("unavailable")}}
	r := newTestRelay(t, store, sink, &memDLQ{}, nil)

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []uuid.UUID{completed.ID}, store.failed)
	require.Equal(t, []uuid.UUID{unrelated.ID}, store.published)
	require.Len(t, sink.attempts, 2, "the void must not be sent ahead of its sale")
}

func TestDrainDeadLettersUnknownEvents(t *testing.T) {
	row := saleRow(t, uuid.New(), enums.OutboxEventType("sale.refunded"), 2)
	store := &memStore{rows: []models.OutboxEvent{row}}
	dlq := &memDLQ{}
	sink := &recordingSink{}
	r := newTestRelay(t, store, sink, dlq, nil)

	_, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Empty(t, sink.attempts)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonUnknownEvent, dlq.entries[0].ErrorReason)
	require.Equal(t, 3, dlq.entries[0].AttemptCount)
	require.Equal(t, []uuid.UUID{row.ID}, store.terminal)
	require.Equal(t, 5, store.terminalAttempts)
}

func TestDrainDeadLettersOnLastAttempt(t *testing.T) {
	productID := uuid.New()
	row := stockRow(t, productID, 4)
	store := &memStore{rows: []models.OutboxEvent{row}}
	dlq := &memDLQ{}
	reg := prometheus.NewRegistry()
	sink := &recordingSink{fail: map[string]error{productID.String(): errors.New("deadline exceeded")}}
	r := newTestRelay(t, store, sink, dlq, metrics.NewOutboxMetrics(reg))

	_, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Empty(t, store.failed)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.Contains(t, *dlq.entries[0].ErrorMessage, "deadline exceeded")
	require.Equal(t, 1.0, counter(t, reg, "outbox_events_dead_lettered_total"))
}

func TestDrainAbortsWhenSettlingFails(t *testing.T) {
	store := &memStore{
		rows:       []models.OutboxEvent{saleRow(t, uuid.New(), enums.EventSaleCompleted, 0)},
		publishErr: errors.New("connection reset"),
	}
	r := newTestRelay(t, store, &recordingSink{}, &memDLQ{}, nil)

	_, err := r.Drain(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

func TestClassify(t *testing.T) {
	transient := errors.New("unavailable")
	cases := []struct {
		name    string
		err     error
		attempt int
		want    outcome
		reason  enums.OutboxDLQErrorReason
	}{
		{"ok", nil, 1, outcomePublished, ""},
		{"transient", transient, 1, outcomeRetry, ""},
		{"exhausted", transient, 5, outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts},
		{"poison", ErrPoison, 1, outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable},
		{"unknown", errUnknownEvent, 1, outcomeDeadLetter, enums.OutboxDLQReasonUnknownEvent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := classify(tc.err, tc.attempt, 5)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.reason, reason)
		})
	}
}

func TestCatalogRejectsMalformedRows(t *testing.T) {
	cat, err := NewCatalog(config.PubSubConfig{SalesTopic: "vv-sales-events"})
	require.NoError(t, err)

	good := saleRow(t, uuid.New(), enums.EventSaleCompleted, 0)

	wrongAggregate := good
	wrongAggregate.AggregateType = enums.AggregateProduct

	noAggregate := good
	noAggregate.AggregateID = uuid.Nil

	nullData := good
	nullData.Payload = json.RawMessage(`{"version":1,"event_id":"x","data":null}`)

	badData := good
	badData.Payload = json.RawMessage(`{"version":1,"event_id":"x","data":{"items":"nope"}}`)

	for name, row := range map[string]models.OutboxEvent{
		"aggregate type": wrongAggregate,
		"aggregate id":   noAggregate,
		"null data":      nullData,
		"bad data":       badData,
	} {
		_, err := cat.Prepare(row)
		require.ErrorIs(t, err, ErrPoison, name)
	}

	msg, err := cat.Prepare(good)
	require.NoError(t, err)
	require.Equal(t, []string{"vv-sales-events"}, cat.Topics())
	require.Equal(t, good.AggregateID.String(), msg.OrderingKey)
}

func TestNewCatalogRequiresTopic(t *testing.T) {
	_, err := NewCatalog(config.PubSubConfig{SalesTopic: "  "})
	require.Error(t, err)
}

func TestPacerBacksOffAndRecovers(t *testing.T) {
	p := newPacer(100*time.Millisecond, 500*time.Millisecond, nil)
	require.Equal(t, 200*time.Millisecond, p.failing())
	require.Equal(t, 400*time.Millisecond, p.failing())
	require.Equal(t, 500*time.Millisecond, p.failing())
	require.Equal(t, 500*time.Millisecond, p.failing())
	require.Equal(t, 100*time.Millisecond, p.healthy())
	require.Equal(t, 200*time.Millisecond, p.failing())
}

func TestRunStopsWhenSinkIsNotReady(t *testing.T) {
	sink := &recordingSink{pingErr: errors.New("subscription missing")}
	r := newTestRelay(t, &memStore{}, sink, &memDLQ{}, nil)
	require.ErrorContains(t, r.Run(context.Background()), "sink not ready")
}

func TestRunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &memStore{onFetch: cancel}
	r := newTestRelay(t, store, &recordingSink{}, &memDLQ{}, nil)
	require.ErrorIs(t, r.Run(ctx), context.Canceled)
}

func newTestRelay(t *testing.T, store *memStore, sink Sink, dlq *memDLQ, m *metrics.OutboxMetrics) *Relay {
	t.Helper()
	cat, err := NewCatalog(config.PubSubConfig{SalesTopic: "vv-sales-events"})
	require.NoError(t, err)
	r, err := New(Params{
		Config:      config.OutboxConfig{BatchSize: 10, PollIntervalMS: 5, MaxAttempts: 5},
		DB:          fakeDB{},
		Store:       store,
		DeadLetters: dlq,
		Catalog:     cat,
		Sink:        sink,
		Metrics:     m,
		Now:         func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return r
}

func saleRow(t *testing.T, saleID uuid.UUID, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	return row(t, eventType, enums.AggregateSale, saleID, payloads.SaleCompletedEvent{SaleID: saleID, SaleNumber: "S-0001"}, attempts)
}

func stockRow(t *testing.T, productID uuid.UUID, attempts int) models.OutboxEvent {
	t.Helper()
	return row(t, enums.EventStockLow, enums.AggregateProduct, productID, payloads.StockLowEvent{ProductID: productID, CurrentStock: 1, MinStock: 3}, attempts)
}

func row(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, id uuid.UUID, data any, attempts int) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 3, 1, 8, 59, 0, 0, time.UTC),
		Data:       raw,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   id,
		Payload:       env,
		AttemptCount:  attempts,
	}
}

func counter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type memStore struct {
	rows       []models.OutboxEvent
	publishErr error
	onFetch    func()

	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (s *memStore) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if s.onFetch != nil {
		s.onFetch()
	}
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *memStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, id)
	return nil
}

func (s *memStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *memStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	s.terminalAttempts = terminalAttempts
	return nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (d *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	d.entries = append(d.entries, entry)
	return nil
}

type recordingSink struct {
	pingErr  error
	fail     map[string]error
	attempts []Message
	sent     []Message
}

func (s *recordingSink) Ping(context.Context) error { return s.pingErr }

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.attempts = append(s.attempts, msg)
	if err := s.fail[msg.OrderingKey]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}
