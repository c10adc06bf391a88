package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Published("sale.completed")
	m.Published("sale.completed")
	m.Failed("stock.low")
	m.DeadLettered("max_attempts")

	families := gather(t, reg)
	require.Equal(t, 2.0, value(families["outbox_events_published_total"], map[string]string{"event_type": "sale.completed"}))
	require.Equal(t, 1.0, value(families["outbox_publish_failures_total"], map[string]string{"event_type": "stock.low"}))
	require.Equal(t, 1.0, value(families["outbox_events_dead_lettered_total"], map[string]string{"reason": "max_attempts"}))

	var noop *OutboxMetrics
	noop.Published("sale.completed")
}

func TestHTTPMetricsHandlerExposesRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/api/sales/{id}", http.MethodGet, http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `http_requests_total{method="GET",route="/api/sales/{id}",status="200"} 1`), body)
}
