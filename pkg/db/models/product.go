package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalogue entry with its on-hand stock.
type Product struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SKU          string           `gorm:"column:sku;not null;uniqueIndex"`
	Barcode      *string          `gorm:"column:barcode;uniqueIndex"`
	Name         string           `gorm:"column:name;not null"`
	Category     *string          `gorm:"column:category"`
	Brand        *string          `gorm:"column:brand"`
	UnitPrice    decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CostPrice    *decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2)"`
	CurrentStock int              `gorm:"column:current_stock;not null;default:0"`
	MinStock     int              `gorm:"column:min_stock;not null;default:0"`
	IsActive     bool             `gorm:"column:is_active;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLowStock reports whether stock is at or below the reorder threshold.
func (p Product) IsLowStock() bool {
	return p.CurrentStock <= p.MinStock
}
