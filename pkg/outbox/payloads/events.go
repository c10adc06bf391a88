package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// SaleLine is one sold product inside a sale event.
type SaleLine struct {
	ProductID     uuid.UUID       `json:"product_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// SaleCompletedEvent is emitted once a sale is committed.
type SaleCompletedEvent struct {
	SaleID         uuid.UUID           `json:"sale_id"`
	SaleNumber     string              `json:"sale_number"`
	CashierID      uuid.UUID           `json:"cashier_id"`
	CustomerID     *uuid.UUID          `json:"customer_id,omitempty"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	Currency       string              `json:"currency"`
	Items          []SaleLine          `json:"items"`
	CompletedAt    time.Time           `json:"completed_at"`
}

// SaleVoidedEvent is emitted when a manager voids a sale and stock is returned.
type SaleVoidedEvent struct {
	SaleID      uuid.UUID       `json:"sale_id"`
	SaleNumber  string          `json:"sale_number"`
	VoidedBy    uuid.UUID       `json:"voided_by"`
	Reason      string          `json:"reason,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Items       []SaleLine      `json:"items"`
	VoidedAt    time.Time       `json:"voided_at"`
}

// StockLowEvent signals a product dropped to or below its reorder threshold.
type StockLowEvent struct {
	ProductID    uuid.UUID  `json:"product_id"`
	SKU          string     `json:"sku"`
	Name         string     `json:"name"`
	CurrentStock int        `json:"current_stock"`
	MinStock     int        `json:"min_stock"`
	SaleID       *uuid.UUID `json:"sale_id,omitempty"`
	DetectedAt   time.Time  `json:"detected_at"`
}
