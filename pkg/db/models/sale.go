package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// Sale is a completed register transaction. Amounts are the server-side
// recomputation, not what the client reported.
type Sale struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SaleNumber       string              `gorm:"column:sale_number;not null;uniqueIndex"`
	CashierID        uuid.UUID           `gorm:"column:cashier_id;type:uuid;not null;index"`
	CustomerID       *uuid.UUID          `gorm:"column:customer_id;type:uuid;index"`
	Status           enums.SaleStatus    `gorm:"column:status;type:text;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	MomoPhone        *string             `gorm:"column:momo_phone"`
	PaymentReference *string             `gorm:"column:payment_reference"`
	Subtotal         decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount        decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount   decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CashReceived     *decimal.Decimal    `gorm:"column:cash_received;type:numeric(12,2)"`
	ChangeAmount     *decimal.Decimal    `gorm:"column:change_amount;type:numeric(12,2)"`
	Notes            *string             `gorm:"column:notes"`
	Items            []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	VoidedAt         *time.Time          `gorm:"column:voided_at"`
	VoidedBy         *uuid.UUID          `gorm:"column:voided_by;type:uuid"`
}

// SaleItem is a priced line of a sale, denormalised so receipts survive
// catalogue edits.
type SaleItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID        uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string          `gorm:"column:name;not null"`
	SKU           string          `gorm:"column:sku;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	OriginalPrice decimal.Decimal `gorm:"column:original_price;type:numeric(12,2);not null"`
	Discount      decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	TotalPrice    decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
}
