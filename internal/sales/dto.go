package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/pagination"
)

// Actor is the authenticated staff member performing a sale operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.StaffRole
}

// SubmitSaleItem is one requested line. The catalogue price becomes the
// original price and the line discount is derived from it, so clients never
// report their own discount.
type SubmitSaleItem struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// SubmitSaleInput is the checkout payload from the register or the API.
type SubmitSaleInput struct {
	CustomerID     *uuid.UUID
	Items          []SubmitSaleItem
	PaymentMethod  enums.PaymentMethod
	MomoPhone      *string
	CardSourceID   *string
	DiscountAmount decimal.Decimal
	CashReceived   *decimal.Decimal
	Notes          *string
}

// SaleItemDTO is a priced line as returned by the API.
type SaleItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Discount      decimal.Decimal `json:"discount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// SaleDTO is the API representation of a sale.
type SaleDTO struct {
	ID               uuid.UUID           `json:"id"`
	SaleNumber       string              `json:"saleNumber"`
	CashierID        uuid.UUID           `json:"cashierId"`
	CustomerID       *uuid.UUID          `json:"customerId,omitempty"`
	Status           enums.SaleStatus    `json:"status"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	MomoPhone        *string             `json:"momoPhone,omitempty"`
	PaymentReference *string             `json:"paymentReference,omitempty"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	TaxAmount        decimal.Decimal     `json:"taxAmount"`
	DiscountAmount   decimal.Decimal     `json:"discountAmount"`
	TotalAmount      decimal.Decimal     `json:"totalAmount"`
	CashReceived     *decimal.Decimal    `json:"cashReceived,omitempty"`
	ChangeAmount     *decimal.Decimal    `json:"changeAmount,omitempty"`
	Notes            *string             `json:"notes,omitempty"`
	Items            []SaleItemDTO       `json:"items"`
	CreatedAt        time.Time           `json:"createdAt"`
	VoidedAt         *time.Time          `json:"voidedAt,omitempty"`
	VoidedBy         *uuid.UUID          `json:"voidedBy,omitempty"`
}

// NewSaleDTO maps a sale row and its loaded items.
func NewSaleDTO(sale *models.Sale) *SaleDTO {
	if sale == nil {
		return nil
	}
	items := make([]SaleItemDTO, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, SaleItemDTO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Name:          item.Name,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			OriginalPrice: item.OriginalPrice,
			Discount:      item.Discount,
			TotalPrice:    item.TotalPrice,
		})
	}
	return &SaleDTO{
		ID:               sale.ID,
		SaleNumber:       sale.SaleNumber,
		CashierID:        sale.CashierID,
		CustomerID:       sale.CustomerID,
		Status:           sale.Status,
		PaymentMethod:    sale.PaymentMethod,
		MomoPhone:        sale.MomoPhone,
		PaymentReference: sale.PaymentReference,
		Subtotal:         sale.Subtotal,
		TaxAmount:        sale.TaxAmount,
		DiscountAmount:   sale.DiscountAmount,
		TotalAmount:      sale.TotalAmount,
		CashReceived:     sale.CashReceived,
		ChangeAmount:     sale.ChangeAmount,
		Notes:            sale.Notes,
		Items:            items,
		CreatedAt:        sale.CreatedAt,
		VoidedAt:         sale.VoidedAt,
		VoidedBy:         sale.VoidedBy,
	}
}

// Completed is the summary the register keeps after checkout.
func (d *SaleDTO) Completed() pos.CompletedSale {
	return pos.CompletedSale{
		ID:            d.ID,
		SaleNumber:    d.SaleNumber,
		TotalAmount:   d.TotalAmount,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     d.CreatedAt,
	}
}

// ListSalesFilters narrows the sales history. From is inclusive, To exclusive.
type ListSalesFilters struct {
	From      *time.Time
	To        *time.Time
	CashierID *uuid.UUID
	Method    *enums.PaymentMethod
	Status    *enums.SaleStatus
}

type ListSalesInput struct {
	Filters    ListSalesFilters
	Pagination pagination.Params
}

// SaleListResult is one page of sales, newest first.
type SaleListResult struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"nextCursor,omitempty"`
}
