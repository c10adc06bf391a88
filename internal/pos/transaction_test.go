package pos

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func product(price int64, stock int) Product {
	return Product{
		ID:           uuid.New(),
		Name:         "USB-C cable",
		SKU:          "CBL-USBC-1M",
		UnitPrice:    dec(price),
		CurrentStock: stock,
	}
}

func requireTotalsConsistent(t *testing.T, txn *Transaction) {
	t.Helper()
	subtotal := decimal.Zero
	for _, item := range txn.Items() {
		require.True(t, item.TotalPrice.Equal(item.UnitPrice.Mul(dec(int64(item.Quantity)))), "line total drifted for %s", item.ProductID)
		require.Positive(t, item.Quantity)
		require.False(t, item.Discount.IsNegative())
		subtotal = subtotal.Add(item.TotalPrice)
	}
	totals := txn.Totals()
	require.True(t, totals.Subtotal.Equal(subtotal), "subtotal %s != %s", totals.Subtotal, subtotal)
	require.True(t, totals.TaxAmount.Equal(subtotal.Mul(DefaultVATRate).Round(0)))
	expected := subtotal.Add(totals.TaxAmount).Sub(totals.DiscountAmount)
	if expected.IsNegative() {
		expected = decimal.Zero
	}
	require.True(t, totals.TotalAmount.Equal(expected))
}

func TestAddToCartScenario(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.Equal(t, StateIdle, txn.State())

	p1 := product(1000, 10)
	require.NoError(t, txn.AddToCart(p1, 2, nil))
	require.Equal(t, StateActive, txn.State())

	totals := txn.Totals()
	require.Equal(t, "2000", totals.Subtotal.String())
	require.Equal(t, "360", totals.TaxAmount.String())
	require.Equal(t, "2360", totals.TotalAmount.String())

	require.NoError(t, txn.UpdateCartItemQuantity(p1.ID, 0))
	require.Empty(t, txn.Items())
	totals = txn.Totals()
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.TotalAmount.IsZero())
	require.Equal(t, StateIdle, txn.State())
}

func TestAddToCartMergesSameProduct(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(500, 3)

	require.NoError(t, txn.AddToCart(p, 2, nil))
	require.NoError(t, txn.AddToCart(p, 3, nil))

	items := txn.Items()
	require.Len(t, items, 1)
	require.Equal(t, 5, items[0].Quantity)
	require.Equal(t, "2500", items[0].TotalPrice.String())
	requireTotalsConsistent(t, txn)
}

func TestAddToCartDefaultsToOneUnit(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(100, 5)
	require.NoError(t, txn.AddToCart(p, 0, nil))
	item, ok := txn.Item(p.ID)
	require.True(t, ok)
	require.Equal(t, 1, item.Quantity)
}

func TestAddToCartCustomPriceDerivesDiscount(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 5)
	custom := dec(800)

	require.NoError(t, txn.AddToCart(p, 1, &custom))
	item, ok := txn.Item(p.ID)
	require.True(t, ok)
	require.Equal(t, "800", item.UnitPrice.String())
	require.Equal(t, "1000", item.OriginalPrice.String())
	require.Equal(t, "200", item.Discount.String())

	// merging ignores a new custom price
	other := dec(100)
	require.NoError(t, txn.AddToCart(p, 1, &other))
	item, _ = txn.Item(p.ID)
	require.Equal(t, 2, item.Quantity)
	require.Equal(t, "800", item.UnitPrice.String())
}

func TestAddToCartAllowsQuantityAboveStock(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(100, 1)

	require.True(t, txn.WouldExceedStock(p, 2))
	require.NoError(t, txn.AddToCart(p, 2, nil))
	item, _ := txn.Item(p.ID)
	require.Equal(t, 2, item.Quantity)
	require.True(t, txn.ExceedsStock(p.ID, 2))
	require.False(t, txn.ExceedsStock(p.ID, 1))
	require.False(t, txn.ExceedsStock(uuid.New(), 100))
}

func TestUpdateCartItemPriceAboveOriginalHasNoDiscount(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 5)
	require.NoError(t, txn.AddToCart(p, 2, nil))

	require.NoError(t, txn.UpdateCartItemPrice(p.ID, dec(1500)))
	item, _ := txn.Item(p.ID)
	require.True(t, item.Discount.IsZero())
	require.Equal(t, "3000", item.TotalPrice.String())

	require.NoError(t, txn.UpdateCartItemPrice(p.ID, dec(900)))
	item, _ = txn.Item(p.ID)
	require.Equal(t, "100", item.Discount.String())
	requireTotalsConsistent(t, txn)

	require.ErrorIs(t, txn.UpdateCartItemPrice(p.ID, dec(-1)), ErrNegativePrice)
	item, _ = txn.Item(p.ID)
	require.Equal(t, "900", item.UnitPrice.String())
}

func TestUnknownProductUpdatesAreIgnored(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.NoError(t, txn.UpdateCartItemQuantity(uuid.New(), 3))
	require.NoError(t, txn.UpdateCartItemPrice(uuid.New(), dec(10)))
	require.NoError(t, txn.RemoveFromCart(uuid.New()))
	require.Empty(t, txn.Items())
}

func TestClearCartZeroesTotals(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.NoError(t, txn.AddToCart(product(1000, 5), 1, nil))
	require.NoError(t, txn.AddToCart(product(250, 5), 4, nil))
	require.NoError(t, txn.ClearCart())
	require.Empty(t, txn.Items())
	require.True(t, txn.Totals().TotalAmount.IsZero())
}

func TestCartDiscountNeverDrivesTotalNegative(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.NoError(t, txn.AddToCart(product(1000, 5), 1, nil))

	require.NoError(t, txn.SetDiscountAmount(dec(180)))
	require.Equal(t, "1000", txn.Totals().TotalAmount.String())

	require.NoError(t, txn.SetDiscountAmount(dec(5000)))
	require.True(t, txn.Totals().TotalAmount.IsZero())

	require.NoError(t, txn.SetDiscountAmount(dec(-20)))
	require.True(t, txn.Totals().DiscountAmount.IsZero())
}

func TestCalculateTotalsIsIdempotent(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.NoError(t, txn.AddToCart(product(333, 5), 3, nil))
	first := txn.CalculateTotals()
	second := txn.CalculateTotals()
	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.TaxAmount.Equal(second.TaxAmount))
	require.True(t, first.TotalAmount.Equal(second.TotalAmount))
	require.True(t, first.TotalAmount.Equal(txn.Totals().TotalAmount))
}

func TestTaxRoundsToCurrencyPlaces(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.NoError(t, txn.AddToCart(product(25, 5), 1, nil))
	// 25 * 0.18 = 4.5
	require.Equal(t, "5", txn.Totals().TaxAmount.String())

	cents := NewTransaction(Pricing{VATRate: DefaultVATRate, Places: 2})
	require.NoError(t, cents.AddToCart(product(25, 5), 1, nil))
	require.Equal(t, "4.5", cents.Totals().TaxAmount.String())
}

func TestSetCashReceived(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 10)
	require.NoError(t, txn.AddToCart(p, 2, nil)) // total 2360

	txn.SetCashReceived(dec(2000))
	require.True(t, txn.ChangeAmount().IsZero())

	txn.SetCashReceived(dec(2360))
	require.True(t, txn.ChangeAmount().IsZero())

	txn.SetCashReceived(dec(5000))
	require.Equal(t, "2640", txn.ChangeAmount().String())
}

func TestChangeIsStaleUntilCashIsSetAgain(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 10)
	require.NoError(t, txn.AddToCart(p, 2, nil))
	txn.SetCashReceived(dec(5000))
	require.Equal(t, "2640", txn.ChangeAmount().String())

	require.NoError(t, txn.AddToCart(p, 1, nil)) // total 3540
	require.Equal(t, "2640", txn.ChangeAmount().String())

	txn.SetCashReceived(txn.CashReceived())
	require.Equal(t, "1460", txn.ChangeAmount().String())
}

func TestAwaitingPaymentLocksCart(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 10)

	require.ErrorIs(t, txn.BeginPayment(), ErrEmptyCart)
	require.NoError(t, txn.AddToCart(p, 1, nil))
	require.ErrorIs(t, txn.BeginPayment(), ErrPaymentMethod)

	txn.SetPaymentMethod(enums.PaymentMethodMomoMTN)
	require.ErrorIs(t, txn.BeginPayment(), ErrMomoPhoneRequired)
	txn.SetMomoPhone(" 0788123456 ")
	require.NoError(t, txn.BeginPayment())
	require.Equal(t, StateAwaitingPayment, txn.State())

	require.ErrorIs(t, txn.AddToCart(p, 1, nil), ErrPaymentInProgress)
	require.ErrorIs(t, txn.UpdateCartItemQuantity(p.ID, 0), ErrPaymentInProgress)
	require.ErrorIs(t, txn.UpdateCartItemPrice(p.ID, dec(1)), ErrPaymentInProgress)
	require.ErrorIs(t, txn.ClearCart(), ErrPaymentInProgress)
	require.ErrorIs(t, txn.BeginPayment(), ErrPaymentInProgress)
	item, _ := txn.Item(p.ID)
	require.Equal(t, 1, item.Quantity)

	require.NoError(t, txn.CancelPayment())
	require.ErrorIs(t, txn.CancelPayment(), ErrNotAwaitingPay)
	require.NoError(t, txn.AddToCart(p, 1, nil))
}

func TestCompleteSaleFreezesUntilReset(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 10)
	require.NoError(t, txn.AddToCart(p, 1, nil))
	txn.SetPaymentMethod(enums.PaymentMethodCash)
	require.NoError(t, txn.BeginPayment())

	txn.CompleteSale(CompletedSale{ID: uuid.New(), SaleNumber: "VV-20261018-ABC123"})
	require.Equal(t, StateActive, txn.State())
	require.NotNil(t, txn.CurrentSale())
	require.ErrorIs(t, txn.AddToCart(p, 1, nil), ErrSaleFinalized)

	txn.ResetTransaction()
	require.Equal(t, StateIdle, txn.State())
	require.NoError(t, txn.AddToCart(p, 1, nil))
}

func TestResetTransactionRestoresDefaults(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	require.NoError(t, txn.AddToCart(product(1000, 10), 3, nil))
	require.NoError(t, txn.SetDiscountAmount(dec(100)))
	txn.SetCustomer(&Customer{ID: uuid.New(), Name: "Aline"})
	txn.SetPaymentMethod(enums.PaymentMethodCash)
	txn.SetCashReceived(dec(10000))

	txn.ResetTransaction()

	require.Empty(t, txn.Items())
	totals := txn.Totals()
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.DiscountAmount.IsZero())
	require.True(t, totals.TotalAmount.IsZero())
	require.Nil(t, txn.Customer())
	require.Equal(t, enums.PaymentMethodUnset, txn.PaymentMethod())
	require.Empty(t, txn.MomoPhone())
	require.True(t, txn.CashReceived().IsZero())
	require.True(t, txn.ChangeAmount().IsZero())
	require.Nil(t, txn.CurrentSale())
	require.Equal(t, StateIdle, txn.State())
}

func TestSnapshotRestoreRecomputesTotals(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 10)
	require.NoError(t, txn.AddToCart(p, 2, nil))
	txn.SetCustomer(&Customer{ID: uuid.New(), Name: "Eric"})
	txn.SetPaymentMethod(enums.PaymentMethodMomoAirtel)
	txn.SetMomoPhone("0731234567")
	txn.SetCashReceived(dec(5000))

	raw, err := json.Marshal(txn.Snapshot())
	require.NoError(t, err)
	require.NotContains(t, string(raw), "cashReceived")
	require.NotContains(t, string(raw), "totalAmount")

	var state PersistedState
	require.NoError(t, json.Unmarshal(raw, &state))
	// tamper with a persisted line total; restore must not trust it
	state.Cart[0].TotalPrice = dec(1)

	restored := NewTransaction(DefaultPricing())
	restored.Restore(state)

	require.Len(t, restored.Items(), 1)
	require.Equal(t, "2360", restored.Totals().TotalAmount.String())
	require.Equal(t, enums.PaymentMethodMomoAirtel, restored.PaymentMethod())
	require.Equal(t, "0731234567", restored.MomoPhone())
	require.Equal(t, "Eric", restored.Customer().Name)
	require.True(t, restored.CashReceived().IsZero())
	require.True(t, restored.ChangeAmount().IsZero())
	requireTotalsConsistent(t, restored)
}

func TestCheckpointResumeKeepsTenderAndLock(t *testing.T) {
	txn := NewTransaction(DefaultPricing())
	p := product(1000, 10)
	require.NoError(t, txn.AddToCart(p, 2, nil))
	require.NoError(t, txn.SetDiscountAmount(dec(60)))
	txn.SetCashReceived(dec(5000))
	txn.SetPaymentMethod(enums.PaymentMethodCash)
	require.NoError(t, txn.AddToCart(p, 1, nil))
	require.NoError(t, txn.BeginPayment())

	raw, err := json.Marshal(txn.Checkpoint())
	require.NoError(t, err)
	var cp Checkpoint
	require.NoError(t, json.Unmarshal(raw, &cp))

	resumed := NewTransaction(DefaultPricing())
	resumed.Resume(cp)

	require.Equal(t, StateAwaitingPayment, resumed.State())
	require.Equal(t, "3480", resumed.Totals().TotalAmount.String())
	require.Equal(t, "2700", resumed.ChangeAmount().String())
	require.ErrorIs(t, resumed.AddToCart(p, 1, nil), ErrPaymentInProgress)
}

func TestTotalsInvariantHoldsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalogue := []Product{product(1000, 10), product(250, 3), product(4999, 1), product(15, 100)}
	txn := NewTransaction(DefaultPricing())

	for i := 0; i < 500; i++ {
		p := catalogue[rng.Intn(len(catalogue))]
		switch rng.Intn(5) {
		case 0:
			require.NoError(t, txn.AddToCart(p, rng.Intn(4)+1, nil))
		case 1:
			require.NoError(t, txn.UpdateCartItemQuantity(p.ID, rng.Intn(6)-1))
		case 2:
			require.NoError(t, txn.UpdateCartItemPrice(p.ID, dec(int64(rng.Intn(6000)))))
		case 3:
			require.NoError(t, txn.RemoveFromCart(p.ID))
		case 4:
			require.NoError(t, txn.SetDiscountAmount(dec(int64(rng.Intn(3000)))))
		}
		requireTotalsConsistent(t, txn)

		seen := map[uuid.UUID]bool{}
		for _, item := range txn.Items() {
			require.False(t, seen[item.ProductID], "duplicate line for %s", item.ProductID)
			seen[item.ProductID] = true
		}
	}
}
