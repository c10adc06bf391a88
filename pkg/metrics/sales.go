package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SalesMetrics counts register outcomes by payment method.
type SalesMetrics struct {
	completed *prometheus.CounterVec
	revenue   *prometheus.CounterVec
	voided    prometheus.Counter
	declined  prometheus.Counter
}

// NewSalesMetrics registers the sales counters on the provided registerer.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_completed_total",
		Help: "Completed sales by payment method.",
	}, []string{"method"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_revenue_total",
		Help: "Gross sale totals by payment method, in currency units.",
	}, []string{"method"})
	voided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_voided_total",
		Help: "Sales voided by a manager.",
	})
	declined := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_card_charges_declined_total",
		Help: "Card charges rejected before a sale was recorded.",
	})
	reg.MustRegister(completed, revenue, voided, declined)
	return &SalesMetrics{
		completed: completed,
		revenue:   revenue,
		voided:    voided,
		declined:  declined,
	}
}

// SaleCompleted records one sale and its total.
func (m *SalesMetrics) SaleCompleted(method string, total decimal.Decimal) {
	if m == nil || m.completed == nil {
		return
	}
	label := normalizeLabel(method)
	m.completed.WithLabelValues(label).Inc()
	m.revenue.WithLabelValues(label).Add(total.InexactFloat64())
}

// SaleVoided increments the void counter.
func (m *SalesMetrics) SaleVoided() {
	if m == nil || m.voided == nil {
		return
	}
	m.voided.Inc()
}

// CardDeclined increments the declined card charge counter.
func (m *SalesMetrics) CardDeclined() {
	if m == nil || m.declined == nil {
		return
	}
	m.declined.Inc()
}
