package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts what the outbox publisher does with each row.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
}

// NewOutboxMetrics registers the publisher counters. A nil registerer yields
// a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events delivered to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Retryable outbox publish failures.",
	}, []string{"event_type"})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dead_lettered_total",
		Help: "Outbox events moved to the DLQ.",
	}, []string{"reason"})
	reg.MustRegister(published, failed, deadLettered)
	return &OutboxMetrics{published: published, failed: failed, deadLettered: deadLettered}
}

func (m *OutboxMetrics) Published(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) Failed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) DeadLettered(reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(reason)).Inc()
}
