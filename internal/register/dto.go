package register

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// AddItemInput adds Quantity units (zero means one) of a product.
type AddItemInput struct {
	ProductID   uuid.UUID
	Quantity    int
	CustomPrice *decimal.Decimal
}

type CheckoutInput struct {
	Notes        *string
	CardSourceID *string
}

// View is the register screen state returned after every operation.
type View struct {
	State          pos.State           `json:"state"`
	Items          []pos.CartItem      `json:"items"`
	Totals         pos.Totals          `json:"totals"`
	Customer       *pos.Customer       `json:"customer"`
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod"`
	MomoPhone      string              `json:"momoPhone,omitempty"`
	CashReceived   decimal.Decimal     `json:"cashReceived"`
	ChangeAmount   decimal.Decimal     `json:"changeAmount"`
	CurrentSale    *pos.CompletedSale  `json:"currentSale,omitempty"`
	ItemCount      int                 `json:"itemCount"`
	OverStockItems []uuid.UUID         `json:"overStockItems,omitempty"`
}

// NewView renders a transaction.
func NewView(txn *pos.Transaction) *View {
	items := txn.Items()
	view := &View{
		State:         txn.State(),
		Items:         items,
		Totals:        txn.Totals(),
		Customer:      txn.Customer(),
		PaymentMethod: txn.PaymentMethod(),
		MomoPhone:     txn.MomoPhone(),
		CashReceived:  txn.CashReceived(),
		ChangeAmount:  txn.ChangeAmount(),
		CurrentSale:   txn.CurrentSale(),
	}
	if view.Items == nil {
		view.Items = []pos.CartItem{}
	}
	for _, item := range items {
		view.ItemCount += item.Quantity
		if txn.ExceedsStock(item.ProductID, item.Quantity) {
			view.OverStockItems = append(view.OverStockItems, item.ProductID)
		}
	}
	return view
}

// CheckoutResult carries the recorded sale and the frozen register.
type CheckoutResult struct {
	Sale     *sales.SaleDTO `json:"sale"`
	Register *View          `json:"register"`
}
