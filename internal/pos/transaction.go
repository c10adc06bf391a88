package pos

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/money"
)

// DefaultVATRate is the Rwandan standard VAT rate.
var DefaultVATRate = decimal.RequireFromString("0.18")

// Pricing controls tax and rounding.
type Pricing struct {
	VATRate decimal.Decimal
	// Places is the number of decimals amounts are rounded to. RWF uses 0.
	Places int32
}

// DefaultPricing is 18% VAT rounded to whole francs.
func DefaultPricing() Pricing {
	return Pricing{VATRate: DefaultVATRate, Places: 0}
}

// Transaction is one register's working sale: the cart, derived totals and
// payment capture. It is not safe for concurrent use; callers own a
// transaction per register and serialise access to it.
type Transaction struct {
	pricing Pricing
	newID   func() uuid.UUID

	items          []CartItem
	totals         Totals
	discountAmount decimal.Decimal

	customer        *Customer
	paymentMethod   enums.PaymentMethod
	momoPhone       string
	cashReceived    decimal.Decimal
	changeAmount    decimal.Decimal
	awaitingPayment bool
	currentSale     *CompletedSale
}

// Option customises a Transaction.
type Option func(*Transaction)

// WithIDGenerator overrides how cart line ids are minted.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(t *Transaction) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// NewTransaction returns an idle transaction.
func NewTransaction(pricing Pricing, opts ...Option) *Transaction {
	t := &Transaction{pricing: pricing, newID: uuid.New}
	for _, opt := range opts {
		opt(t)
	}
	t.CalculateTotals()
	return t
}

// AddToCart adds quantity units of product. A product already in the cart is
// merged into its existing line through UpdateCartItemQuantity, so the cart
// never holds two lines for one product. A zero quantity means one unit.
// customPrice only applies when a new line is created.
func (t *Transaction) AddToCart(product Product, quantity int, customPrice *decimal.Decimal) error {
	if err := t.ensureEditable(); err != nil {
		return err
	}
	if quantity == 0 {
		quantity = 1
	}
	if idx := t.indexOf(product.ID); idx >= 0 {
		return t.UpdateCartItemQuantity(product.ID, t.items[idx].Quantity+quantity)
	}
	if quantity < 0 {
		return nil
	}

	unitPrice := product.UnitPrice
	if customPrice != nil {
		unitPrice = *customPrice
	}
	if unitPrice.IsNegative() {
		return ErrNegativePrice
	}

	item := CartItem{
		ID:            t.newID(),
		ProductID:     product.ID,
		Name:          product.Name,
		SKU:           product.SKU,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		OriginalPrice: product.UnitPrice,
		StockQuantity: product.CurrentStock,
	}
	reprice(&item)
	t.items = append(t.items, item)
	t.CalculateTotals()
	return nil
}

// UpdateCartItemQuantity sets the quantity of a line. Zero or less removes it.
// Unknown products are ignored.
func (t *Transaction) UpdateCartItemQuantity(productID uuid.UUID, quantity int) error {
	if err := t.ensureEditable(); err != nil {
		return err
	}
	if quantity <= 0 {
		return t.RemoveFromCart(productID)
	}
	idx := t.indexOf(productID)
	if idx < 0 {
		return nil
	}
	t.items[idx].Quantity = quantity
	reprice(&t.items[idx])
	t.CalculateTotals()
	return nil
}

// UpdateCartItemPrice overrides the unit price of a line. The line discount is
// derived from the override and is never negative.
func (t *Transaction) UpdateCartItemPrice(productID uuid.UUID, price decimal.Decimal) error {
	if err := t.ensureEditable(); err != nil {
		return err
	}
	if price.IsNegative() {
		return ErrNegativePrice
	}
	idx := t.indexOf(productID)
	if idx < 0 {
		return nil
	}
	t.items[idx].UnitPrice = price
	reprice(&t.items[idx])
	t.CalculateTotals()
	return nil
}

func (t *Transaction) RemoveFromCart(productID uuid.UUID) error {
	if err := t.ensureEditable(); err != nil {
		return err
	}
	idx := t.indexOf(productID)
	if idx < 0 {
		return nil
	}
	t.items = append(t.items[:idx], t.items[idx+1:]...)
	t.CalculateTotals()
	return nil
}

func (t *Transaction) ClearCart() error {
	if err := t.ensureEditable(); err != nil {
		return err
	}
	t.items = nil
	t.CalculateTotals()
	return nil
}

// SetDiscountAmount sets the cart-level discount taken off the grand total.
// Negative amounts clamp to zero.
func (t *Transaction) SetDiscountAmount(amount decimal.Decimal) error {
	if err := t.ensureEditable(); err != nil {
		return err
	}
	t.discountAmount = money.NonNegative(amount)
	t.CalculateTotals()
	return nil
}

// CalculateTotals recomputes the derived totals from the current lines and
// returns them. Calling it repeatedly without a mutation yields the same result.
func (t *Transaction) CalculateTotals() Totals {
	t.totals = ComputeTotals(t.items, t.discountAmount, t.pricing)
	return t.totals
}

// ComputeTotals is the pure totals function over a set of lines.
func ComputeTotals(items []CartItem, discountAmount decimal.Decimal, pricing Pricing) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	tax := money.Percent(subtotal, pricing.VATRate, pricing.Places)
	discount := money.NonNegative(discountAmount)
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		TotalAmount:    money.NonNegative(subtotal.Add(tax).Sub(discount)),
	}
}

// SetCashReceived records cash tendered and computes change against the total
// as it stands now. Later cart edits do not refresh the change; call this
// again after editing.
func (t *Transaction) SetCashReceived(amount decimal.Decimal) {
	t.cashReceived = money.NonNegative(amount)
	t.changeAmount = money.NonNegative(t.cashReceived.Sub(t.totals.TotalAmount))
}

func (t *Transaction) SetPaymentMethod(method enums.PaymentMethod) {
	t.paymentMethod = method
}

func (t *Transaction) SetMomoPhone(phone string) {
	t.momoPhone = strings.TrimSpace(phone)
}

// SetCustomer attaches a customer; nil detaches.
func (t *Transaction) SetCustomer(customer *Customer) {
	if customer == nil {
		t.customer = nil
		return
	}
	c := *customer
	t.customer = &c
}

// BeginPayment locks the cart while settlement is in flight.
func (t *Transaction) BeginPayment() error {
	if t.currentSale != nil {
		return ErrSaleFinalized
	}
	if t.awaitingPayment {
		return ErrPaymentInProgress
	}
	if len(t.items) == 0 {
		return ErrEmptyCart
	}
	if !t.paymentMethod.IsValid() {
		return ErrPaymentMethod
	}
	if t.paymentMethod.IsMobileMoney() && t.momoPhone == "" {
		return ErrMomoPhoneRequired
	}
	t.awaitingPayment = true
	return nil
}

// CancelPayment unlocks the cart after a failed or abandoned settlement.
func (t *Transaction) CancelPayment() error {
	if !t.awaitingPayment {
		return ErrNotAwaitingPay
	}
	t.awaitingPayment = false
	return nil
}

// CompleteSale records the submitted sale for the receipt screen. The cart
// stays visible, and frozen, until ResetTransaction.
func (t *Transaction) CompleteSale(sale CompletedSale) {
	t.awaitingPayment = false
	s := sale
	t.currentSale = &s
}

// ResetTransaction returns every field to its idle default.
func (t *Transaction) ResetTransaction() {
	t.items = nil
	t.discountAmount = decimal.Zero
	t.customer = nil
	t.paymentMethod = enums.PaymentMethodUnset
	t.momoPhone = ""
	t.cashReceived = decimal.Zero
	t.changeAmount = decimal.Zero
	t.awaitingPayment = false
	t.currentSale = nil
	t.CalculateTotals()
}

func (t *Transaction) State() State {
	switch {
	case t.awaitingPayment:
		return StateAwaitingPayment
	case len(t.items) > 0 || t.currentSale != nil:
		return StateActive
	default:
		return StateIdle
	}
}

// WouldExceedStock reports whether adding quantity units of product would take
// its line above the stock the catalogue reports. The engine itself never
// enforces this.
func (t *Transaction) WouldExceedStock(product Product, quantity int) bool {
	if quantity == 0 {
		quantity = 1
	}
	existing := 0
	if idx := t.indexOf(product.ID); idx >= 0 {
		existing = t.items[idx].Quantity
	}
	return existing+quantity > product.CurrentStock
}

// ExceedsStock reports whether setting productID's line to quantity goes over
// the stock captured when the line was created.
func (t *Transaction) ExceedsStock(productID uuid.UUID, quantity int) bool {
	idx := t.indexOf(productID)
	if idx < 0 {
		return false
	}
	return quantity > t.items[idx].StockQuantity
}

// Items returns a copy of the cart lines.
func (t *Transaction) Items() []CartItem {
	return append([]CartItem(nil), t.items...)
}

// Item returns the line for productID.
func (t *Transaction) Item(productID uuid.UUID) (CartItem, bool) {
	if idx := t.indexOf(productID); idx >= 0 {
		return t.items[idx], true
	}
	return CartItem{}, false
}

func (t *Transaction) Totals() Totals                     { return t.totals }
func (t *Transaction) Customer() *Customer                { return t.customer }
func (t *Transaction) PaymentMethod() enums.PaymentMethod { return t.paymentMethod }
func (t *Transaction) MomoPhone() string                  { return t.momoPhone }
func (t *Transaction) CashReceived() decimal.Decimal      { return t.cashReceived }
func (t *Transaction) ChangeAmount() decimal.Decimal      { return t.changeAmount }
func (t *Transaction) CurrentSale() *CompletedSale        { return t.currentSale }
func (t *Transaction) Pricing() Pricing                   { return t.pricing }

// Snapshot returns the persisted subset of the transaction.
func (t *Transaction) Snapshot() PersistedState {
	state := PersistedState{
		Cart:          t.Items(),
		PaymentMethod: t.paymentMethod,
		MomoPhone:     t.momoPhone,
	}
	if t.customer != nil {
		c := *t.customer
		state.Customer = &c
	}
	return state
}

// Restore rehydrates from a snapshot. Everything not in the snapshot goes back
// to its default and totals are recomputed from the restored lines.
func (t *Transaction) Restore(state PersistedState) {
	t.ResetTransaction()
	t.items = make([]CartItem, 0, len(state.Cart))
	for _, item := range state.Cart {
		if item.Quantity <= 0 {
			continue
		}
		reprice(&item)
		t.items = append(t.items, item)
	}
	t.SetCustomer(state.Customer)
	t.paymentMethod = state.PaymentMethod
	t.momoPhone = state.MomoPhone
	t.CalculateTotals()
}

// Checkpoint captures the full working state.
func (t *Transaction) Checkpoint() Checkpoint {
	cp := Checkpoint{
		PersistedState:  t.Snapshot(),
		DiscountAmount:  t.discountAmount,
		CashReceived:    t.cashReceived,
		ChangeAmount:    t.changeAmount,
		AwaitingPayment: t.awaitingPayment,
	}
	if t.currentSale != nil {
		sale := *t.currentSale
		cp.CurrentSale = &sale
	}
	return cp
}

// Resume restores a checkpoint. Change is carried as stored rather than
// recomputed, so a stale change amount stays stale across requests.
func (t *Transaction) Resume(cp Checkpoint) {
	t.Restore(cp.PersistedState)
	t.discountAmount = money.NonNegative(cp.DiscountAmount)
	t.cashReceived = cp.CashReceived
	t.changeAmount = cp.ChangeAmount
	t.awaitingPayment = cp.AwaitingPayment
	if cp.CurrentSale != nil {
		sale := *cp.CurrentSale
		t.currentSale = &sale
	}
	t.CalculateTotals()
}

func (t *Transaction) ensureEditable() error {
	if t.currentSale != nil {
		return ErrSaleFinalized
	}
	if t.awaitingPayment {
		return ErrPaymentInProgress
	}
	return nil
}

func (t *Transaction) indexOf(productID uuid.UUID) int {
	for i := range t.items {
		if t.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func reprice(item *CartItem) {
	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	item.Discount = money.NonNegative(item.OriginalPrice.Sub(item.UnitPrice))
}
