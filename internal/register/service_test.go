package register

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
	"github.com/supserrr/vevurn-sub002/pkg/redis/redistest"
)

type stubProducts map[uuid.UUID]pos.Product

func (s stubProducts) LoadForRegister(_ context.Context, id uuid.UUID) (pos.Product, error) {
	p, ok := s[id]
	if !ok {
		return pos.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

type stubCustomers map[uuid.UUID]pos.Customer

func (s stubCustomers) LoadForRegister(_ context.Context, id uuid.UUID) (*pos.Customer, error) {
	c, ok := s[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return &c, nil
}

type stubSales struct {
	inputs []sales.SubmitSaleInput
	err    error
}

func (s *stubSales) Submit(_ context.Context, _ sales.Actor, input sales.SubmitSaleInput) (*sales.SaleDTO, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &sales.SaleDTO{
		ID:            uuid.New(),
		SaleNumber:    "VV-20260314-ABC123",
		PaymentMethod: input.PaymentMethod,
		TotalAmount:   decimal.NewFromInt(11800),
		CreatedAt:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}, nil
}

type fixture struct {
	svc       Service
	redis     *pkgredis.Client
	fake      *redistest.Fake
	sales     *stubSales
	charger   pos.Product
	phoneCase pos.Product
	customer  pos.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, fake := redistest.Client()
	store, err := NewStore(client, time.Hour)
	require.NoError(t, err)

	f := &fixture{
		redis: client,
		fake:  fake,
		sales: &stubSales{},
		charger: pos.Product{
			ID: uuid.New(), Name: "USB-C Charger", SKU: "CHG-01",
			UnitPrice: decimal.NewFromInt(10000), CurrentStock: 3,
		},
		phoneCase: pos.Product{
			ID: uuid.New(), Name: "Phone Case", SKU: "CASE-01",
			UnitPrice: decimal.NewFromInt(2500), CurrentStock: 10,
		},
		customer: pos.Customer{ID: uuid.New(), Name: "Aline", Phone: "0788123456"},
	}
	f.svc, err = NewService(ServiceParams{
		Store:     store,
		Products:  stubProducts{f.charger.ID: f.charger, f.phoneCase.ID: f.phoneCase},
		Customers: stubCustomers{f.customer.ID: f.customer},
		Sales:     f.sales,
		Pricing:   pos.DefaultPricing(),
	})
	require.NoError(t, err)
	return f
}

var (
	cashierActor = sales.Actor{UserID: uuid.New(), Role: enums.StaffRoleCashier}
	managerActor = sales.Actor{UserID: uuid.New(), Role: enums.StaffRoleManager}
)

func TestAddItemPersistsAcrossRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.charger.ID, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, pos.StateActive, view.State)
	require.True(t, view.Totals.TotalAmount.Equal(decimal.NewFromInt(11800)))

	_, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.charger.ID})
	require.NoError(t, err)

	loaded, err := f.svc.Get(ctx, cashierActor)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.Equal(t, 2, loaded.Items[0].Quantity)
	require.Equal(t, 2, loaded.ItemCount)

	key := f.redis.TransactionKey(cashierActor.UserID.String())
	require.Contains(t, f.fake.Data, key)
	require.Equal(t, time.Hour, f.fake.TTLs[key])

	other, err := f.svc.Get(ctx, managerActor)
	require.NoError(t, err)
	require.Equal(t, pos.StateIdle, other.State)
}

func TestAddItemRejectsQuantityAboveStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.charger.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.charger.ID, Quantity: 2})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = f.svc.UpdateQuantity(ctx, cashierActor, f.charger.ID, 4)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	view, err := f.svc.Get(ctx, cashierActor)
	require.NoError(t, err)
	require.Equal(t, 2, view.Items[0].Quantity)

	_, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: uuid.New()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPriceOverrideBelowCatalogueNeedsManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.NoError(t, err)

	_, err = f.svc.UpdatePrice(ctx, cashierActor, f.phoneCase.ID, decimal.NewFromInt(2000))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	view, err := f.svc.UpdatePrice(ctx, cashierActor, f.phoneCase.ID, decimal.NewFromInt(3000))
	require.NoError(t, err)
	require.True(t, view.Items[0].Discount.IsZero())

	_, err = f.svc.UpdatePrice(ctx, cashierActor, f.phoneCase.ID, decimal.NewFromInt(-1))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// The manager's cart is separate, so they add the item before discounting it.
	_, err = f.svc.AddItem(ctx, managerActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.NoError(t, err)
	view, err = f.svc.UpdatePrice(ctx, managerActor, f.phoneCase.ID, decimal.NewFromInt(2000))
	require.NoError(t, err)
	require.True(t, view.Items[0].Discount.Equal(decimal.NewFromInt(500)))

	_, err = f.svc.UpdatePrice(ctx, managerActor, uuid.New(), decimal.NewFromInt(1))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPaymentLockBlocksCartEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BeginPayment(ctx, cashierActor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart: %v", err)

	_, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.NoError(t, err)
	_, err = f.svc.SetPayment(ctx, cashierActor, enums.PaymentMethodMomoMTN, "")
	require.NoError(t, err)
	_, err = f.svc.BeginPayment(ctx, cashierActor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "missing phone: %v", err)

	_, err = f.svc.SetPayment(ctx, cashierActor, enums.PaymentMethodMomoMTN, "12")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	view, err := f.svc.SetPayment(ctx, cashierActor, enums.PaymentMethodMomoMTN, "0788 123 456")
	require.NoError(t, err)
	require.Equal(t, "0788123456", view.MomoPhone)

	view, err = f.svc.BeginPayment(ctx, cashierActor)
	require.NoError(t, err)
	require.Equal(t, pos.StateAwaitingPayment, view.State)

	_, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	_, err = f.svc.RemoveItem(ctx, cashierActor, f.phoneCase.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	view, err = f.svc.CancelPayment(ctx, cashierActor)
	require.NoError(t, err)
	require.Equal(t, pos.StateActive, view.State)

	_, err = f.svc.CancelPayment(ctx, cashierActor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCheckoutSubmitsAndFreezesUntilReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.charger.ID})
	require.NoError(t, err)
	_, err = f.svc.SetCustomer(ctx, cashierActor, &f.customer.ID)
	require.NoError(t, err)
	_, err = f.svc.SetPayment(ctx, cashierActor, enums.PaymentMethodCash, "")
	require.NoError(t, err)
	view, err := f.svc.SetCashReceived(ctx, cashierActor, decimal.NewFromInt(20000))
	require.NoError(t, err)
	require.True(t, view.ChangeAmount.Equal(decimal.NewFromInt(8200)))

	notes := "paid in full"
	result, err := f.svc.Checkout(ctx, cashierActor, CheckoutInput{Notes: &notes})
	require.NoError(t, err)
	require.Len(t, f.sales.inputs, 1)
	submitted := f.sales.inputs[0]
	require.Equal(t, enums.PaymentMethodCash, submitted.PaymentMethod)
	require.Equal(t, f.customer.ID, *submitted.CustomerID)
	require.True(t, submitted.CashReceived.Equal(decimal.NewFromInt(20000)))
	require.Len(t, submitted.Items, 1)
	require.Equal(t, f.charger.ID, submitted.Items[0].ProductID)

	require.NotNil(t, result.Register.CurrentSale)
	require.Equal(t, result.Sale.SaleNumber, result.Register.CurrentSale.SaleNumber)
	require.Equal(t, pos.StateActive, result.Register.State)

	_, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	view, err = f.svc.Reset(ctx, cashierActor)
	require.NoError(t, err)
	require.Equal(t, pos.StateIdle, view.State)
	require.NotContains(t, f.fake.Data, f.redis.TransactionKey(cashierActor.UserID.String()))
}

func TestCheckoutFailureReleasesPaymentLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sales.err = pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")

	_, err := f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.NoError(t, err)
	_, err = f.svc.SetPayment(ctx, cashierActor, enums.PaymentMethodBankTransfer, "")
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, cashierActor, CheckoutInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	view, err := f.svc.Get(ctx, cashierActor)
	require.NoError(t, err)
	require.Equal(t, pos.StateActive, view.State)
	require.Nil(t, view.CurrentSale)
}

func TestConcurrentRequestIsRejectedWhileLocked(t *testing.T) {
	f := newFixture(t)
	f.fake.Data[f.redis.LockKey("register:"+cashierActor.UserID.String())] = "held"

	_, err := f.svc.AddItem(context.Background(), cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestStaleChangeIsCarriedBetweenRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.NoError(t, err)
	view, err := f.svc.SetCashReceived(ctx, cashierActor, decimal.NewFromInt(5000))
	require.NoError(t, err)
	require.True(t, view.ChangeAmount.Equal(decimal.NewFromInt(2050)))

	view, err = f.svc.AddItem(ctx, cashierActor, AddItemInput{ProductID: f.phoneCase.ID})
	require.NoError(t, err)
	require.True(t, view.ChangeAmount.Equal(decimal.NewFromInt(2050)))
	require.True(t, view.Totals.TotalAmount.Equal(decimal.NewFromInt(5900)))
}
