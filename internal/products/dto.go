package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
)

// ProductDTO is the catalogue payload returned to register clients.
type ProductDTO struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	SKU          string           `json:"sku"`
	Barcode      *string          `json:"barcode,omitempty"`
	UnitPrice    decimal.Decimal  `json:"unitPrice"`
	CostPrice    *decimal.Decimal `json:"costPrice,omitempty"`
	CurrentStock int              `json:"currentStock"`
	MinStock     int              `json:"minStock"`
	Category     *string          `json:"category,omitempty"`
	Brand        *string          `json:"brand,omitempty"`
	IsActive     bool             `json:"isActive"`
	LowStock     bool             `json:"lowStock"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(product *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:           product.ID,
		Name:         product.Name,
		SKU:          product.SKU,
		Barcode:      product.Barcode,
		UnitPrice:    product.UnitPrice,
		CostPrice:    product.CostPrice,
		CurrentStock: product.CurrentStock,
		MinStock:     product.MinStock,
		Category:     product.Category,
		Brand:        product.Brand,
		IsActive:     product.IsActive,
		LowStock:     product.IsLowStock(),
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}
}

// ToPOS converts the catalogue row into the record the pricing engine uses.
func ToPOS(product *models.Product) pos.Product {
	return pos.Product{
		ID:           product.ID,
		Name:         product.Name,
		SKU:          product.SKU,
		Barcode:      deref(product.Barcode),
		UnitPrice:    product.UnitPrice,
		CurrentStock: product.CurrentStock,
		MinStock:     product.MinStock,
		Category:     deref(product.Category),
		Brand:        deref(product.Brand),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
