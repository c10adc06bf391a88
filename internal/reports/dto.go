package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// MethodTotal aggregates completed sales settled through one payment method.
type MethodTotal struct {
	Method enums.PaymentMethod `json:"method"`
	Count  int64               `json:"count"`
	Total  decimal.Decimal     `json:"total"`
}

// ProductTotal is one row of the best sellers table.
type ProductTotal struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DailyReport summarises the completed sales of one shop day.
type DailyReport struct {
	Date            string          `json:"date"`
	SalesCount      int64           `json:"salesCount"`
	GrossTotal      decimal.Decimal `json:"grossTotal"`
	TaxTotal        decimal.Decimal `json:"taxTotal"`
	DiscountTotal   decimal.Decimal `json:"discountTotal"`
	ByPaymentMethod []MethodTotal   `json:"byPaymentMethod"`
	TopProducts     []ProductTotal  `json:"topProducts"`
}

// dayRange is the half-open UTC interval covering a local calendar day.
type dayRange struct {
	From time.Time
	To   time.Time
}
