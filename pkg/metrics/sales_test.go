package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestSalesMetricsCountByMethod(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSalesMetrics(reg)
	m.SaleCompleted("CASH", decimal.NewFromInt(23600))
	m.SaleCompleted("CASH", decimal.NewFromInt(400))
	m.SaleVoided()

	families := gather(t, reg)
	if got := value(families["pos_sales_completed_total"], map[string]string{"method": "CASH"}); got != 2 {
		t.Fatalf("expected 2 completed cash sales, got %f", got)
	}
	if got := value(families["pos_sales_revenue_total"], map[string]string{"method": "CASH"}); got != 24000 {
		t.Fatalf("expected revenue 24000, got %f", got)
	}

	var nilMetrics *SalesMetrics
	nilMetrics.SaleCompleted("CARD", decimal.NewFromInt(1))
	nilMetrics.CardDeclined()
}
