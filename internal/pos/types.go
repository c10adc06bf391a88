package pos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

var (
	ErrPaymentInProgress = errors.New("cart is locked while payment is in progress")
	ErrSaleFinalized     = errors.New("sale already completed; reset the transaction")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrPaymentMethod     = errors.New("payment method is required")
	ErrMomoPhoneRequired = errors.New("mobile money phone number is required")
	ErrNegativePrice     = errors.New("price must not be negative")
	ErrNotAwaitingPay    = errors.New("transaction is not awaiting payment")
)

// Product is the catalogue record the engine prices from.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Barcode      string          `json:"barcode,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	CurrentStock int             `json:"currentStock"`
	MinStock     int             `json:"minStock"`
	Category     string          `json:"category,omitempty"`
	Brand        string          `json:"brand,omitempty"`
}

// CartItem is one line of the cart. TotalPrice always equals UnitPrice * Quantity.
type CartItem struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Discount      decimal.Decimal `json:"discount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	StockQuantity int             `json:"stockQuantity"`
}

type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

// Totals are derived from the cart and never stored independently.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// CompletedSale is the receipt-facing summary of a submitted sale.
type CompletedSale struct {
	ID            uuid.UUID           `json:"id"`
	SaleNumber    string              `json:"saleNumber"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// State is the coarse lifecycle of a transaction.
type State string

const (
	StateIdle            State = "idle"
	StateActive          State = "active"
	StateAwaitingPayment State = "awaiting_payment"
)

// PersistedState is the subset that survives a reload. Cash tendered, change
// and totals are left out; totals are recomputed on Restore.
type PersistedState struct {
	Cart          []CartItem          `json:"cart"`
	Customer      *Customer           `json:"customer"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	MomoPhone     string              `json:"momoPhone"`
}

// Checkpoint is the full working state, used by server-side registers that
// must carry tender and payment progress between requests.
type Checkpoint struct {
	PersistedState
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	CashReceived    decimal.Decimal `json:"cashReceived"`
	ChangeAmount    decimal.Decimal `json:"changeAmount"`
	AwaitingPayment bool            `json:"awaitingPayment"`
	CurrentSale     *CompletedSale  `json:"currentSale,omitempty"`
}
