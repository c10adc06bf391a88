package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SaleLineRow mirrors the sales_events BigQuery schema: one row per sold
// line. Voids produce the same rows with negated quantity and amounts so
// that SUM over the table nets to live revenue.
type SaleLineRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	SaleID         string             `bigquery:"sale_id"`
	SaleNumber     *string            `bigquery:"sale_number"`
	CashierID      *string            `bigquery:"cashier_id"`
	CustomerID     *string            `bigquery:"customer_id"`
	PaymentMethod  *string            `bigquery:"payment_method"`
	Currency       string             `bigquery:"currency"`
	LineNo         int64              `bigquery:"line_no"`
	ProductID      string             `bigquery:"product_id"`
	SKU            string             `bigquery:"sku"`
	Name           string             `bigquery:"name"`
	Quantity       int64              `bigquery:"quantity"`
	UnitPriceMinor int64              `bigquery:"unit_price_minor"`
	OriginalMinor  int64              `bigquery:"original_price_minor"`
	LineTotalMinor int64              `bigquery:"line_total_minor"`
	SaleTotalMinor int64              `bigquery:"sale_total_minor"`
	SaleTaxMinor   *int64             `bigquery:"sale_tax_minor"`
	VoidReason     *string            `bigquery:"void_reason"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}

// StockEventRow mirrors the stock_events BigQuery schema.
type StockEventRow struct {
	EventID      string             `bigquery:"event_id"`
	OccurredAt   time.Time          `bigquery:"occurred_at"`
	ProductID    string             `bigquery:"product_id"`
	SKU          string             `bigquery:"sku"`
	Name         string             `bigquery:"name"`
	CurrentStock int64              `bigquery:"current_stock"`
	MinStock     int64              `bigquery:"min_stock"`
	SaleID       *string            `bigquery:"sale_id"`
	Payload      cbigquery.NullJSON `bigquery:"payload"`
}
