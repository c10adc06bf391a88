package register

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// Service drives a cashier's register transaction held server-side.
type Service interface {
	Get(ctx context.Context, actor sales.Actor) (*View, error)
	AddItem(ctx context.Context, actor sales.Actor, input AddItemInput) (*View, error)
	UpdateQuantity(ctx context.Context, actor sales.Actor, productID uuid.UUID, quantity int) (*View, error)
	UpdatePrice(ctx context.Context, actor sales.Actor, productID uuid.UUID, price decimal.Decimal) (*View, error)
	RemoveItem(ctx context.Context, actor sales.Actor, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, actor sales.Actor) (*View, error)
	SetCustomer(ctx context.Context, actor sales.Actor, customerID *uuid.UUID) (*View, error)
	SetPayment(ctx context.Context, actor sales.Actor, method enums.PaymentMethod, momoPhone string) (*View, error)
	SetCashReceived(ctx context.Context, actor sales.Actor, amount decimal.Decimal) (*View, error)
	SetDiscount(ctx context.Context, actor sales.Actor, amount decimal.Decimal) (*View, error)
	BeginPayment(ctx context.Context, actor sales.Actor) (*View, error)
	CancelPayment(ctx context.Context, actor sales.Actor) (*View, error)
	Checkout(ctx context.Context, actor sales.Actor, input CheckoutInput) (*CheckoutResult, error)
	Reset(ctx context.Context, actor sales.Actor) (*View, error)
}

type productLoader interface {
	LoadForRegister(ctx context.Context, id uuid.UUID) (pos.Product, error)
}

type customerLoader interface {
	LoadForRegister(ctx context.Context, id uuid.UUID) (*pos.Customer, error)
}

type saleSubmitter interface {
	Submit(ctx context.Context, actor sales.Actor, input sales.SubmitSaleInput) (*sales.SaleDTO, error)
}

type ServiceParams struct {
	Store     *Store
	Products  productLoader
	Customers customerLoader
	Sales     saleSubmitter
	Pricing   pos.Pricing
	Logger    *logger.Logger
}

type service struct {
	store     *Store
	products  productLoader
	customers customerLoader
	sales     saleSubmitter
	pricing   pos.Pricing
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("register store required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer loader required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales submitter required")
	}
	if params.Pricing == (pos.Pricing{}) {
		params.Pricing = pos.DefaultPricing()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		store:     params.Store,
		products:  params.Products,
		customers: params.Customers,
		sales:     params.Sales,
		pricing:   params.Pricing,
		logg:      params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, actor sales.Actor) (*View, error) {
	txn, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return NewView(txn), nil
}

// AddItem adds units of a catalogue product. The register refuses quantities
// above live stock; the cart is left untouched when it does.
func (s *service) AddItem(ctx context.Context, actor sales.Actor, input AddItemInput) (*View, error) {
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		if err := editable(txn); err != nil {
			return err
		}
		product, err := s.products.LoadForRegister(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if txn.WouldExceedStock(product, input.Quantity) {
			return insufficientStock(product, txn, input.Quantity)
		}
		if input.CustomPrice != nil {
			if err := requirePriceAuthority(actor, product.UnitPrice, *input.CustomPrice); err != nil {
				return err
			}
		}
		return txn.AddToCart(product, input.Quantity, input.CustomPrice)
	})
}

func (s *service) UpdateQuantity(ctx context.Context, actor sales.Actor, productID uuid.UUID, quantity int) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		if err := editable(txn); err != nil {
			return err
		}
		if quantity > 0 {
			if _, ok := txn.Item(productID); !ok {
				return lineNotFound(productID)
			}
			product, err := s.products.LoadForRegister(ctx, productID)
			if err != nil {
				return err
			}
			if quantity > product.CurrentStock {
				return insufficientStock(product, txn, quantity)
			}
		}
		return txn.UpdateCartItemQuantity(productID, quantity)
	})
}

// UpdatePrice overrides a line price. Going below the catalogue price needs a
// manager.
func (s *service) UpdatePrice(ctx context.Context, actor sales.Actor, productID uuid.UUID, price decimal.Decimal) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		line, ok := txn.Item(productID)
		if !ok {
			return lineNotFound(productID)
		}
		if err := requirePriceAuthority(actor, line.OriginalPrice, price); err != nil {
			return err
		}
		return txn.UpdateCartItemPrice(productID, price)
	})
}

func (s *service) RemoveItem(ctx context.Context, actor sales.Actor, productID uuid.UUID) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		return txn.RemoveFromCart(productID)
	})
}

func (s *service) Clear(ctx context.Context, actor sales.Actor) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		return txn.ClearCart()
	})
}

func (s *service) SetCustomer(ctx context.Context, actor sales.Actor, customerID *uuid.UUID) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		if customerID == nil || *customerID == uuid.Nil {
			txn.SetCustomer(nil)
			return nil
		}
		customer, err := s.customers.LoadForRegister(ctx, *customerID)
		if err != nil {
			return err
		}
		txn.SetCustomer(customer)
		return nil
	})
}

func (s *service) SetPayment(ctx context.Context, actor sales.Actor, method enums.PaymentMethod, momoPhone string) (*View, error) {
	if method.IsSet() && !method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %s", method)
	}
	phone := strings.TrimSpace(momoPhone)
	if method.IsMobileMoney() && phone != "" {
		normalized, err := sales.NormalizeMomoPhone(phone)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}
	if !method.IsMobileMoney() {
		phone = ""
	}
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		txn.SetPaymentMethod(method)
		txn.SetMomoPhone(phone)
		return nil
	})
}

func (s *service) SetCashReceived(ctx context.Context, actor sales.Actor, amount decimal.Decimal) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		txn.SetCashReceived(amount)
		return nil
	})
}

func (s *service) SetDiscount(ctx context.Context, actor sales.Actor, amount decimal.Decimal) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		return txn.SetDiscountAmount(amount)
	})
}

func (s *service) BeginPayment(ctx context.Context, actor sales.Actor) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		return txn.BeginPayment()
	})
}

func (s *service) CancelPayment(ctx context.Context, actor sales.Actor) (*View, error) {
	return s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		return txn.CancelPayment()
	})
}

// Checkout submits the held cart as a sale. On success the sale is recorded
// on the transaction and the cart stays frozen until Reset; on failure the
// payment lock is released so the cashier can correct the cart.
func (s *service) Checkout(ctx context.Context, actor sales.Actor, input CheckoutInput) (*CheckoutResult, error) {
	var result *CheckoutResult
	view, err := s.mutate(ctx, actor, func(txn *pos.Transaction) error {
		if txn.State() != pos.StateAwaitingPayment {
			if err := txn.BeginPayment(); err != nil {
				return err
			}
		}

		sale, err := s.sales.Submit(ctx, actor, submissionFrom(txn, input))
		if err != nil {
			if cancelErr := txn.CancelPayment(); cancelErr != nil {
				return cancelErr
			}
			return &submitError{err: err}
		}
		txn.CompleteSale(sale.Completed())
		result = &CheckoutResult{Sale: sale}
		s.logg.Info(s.logg.WithSaleID(ctx, sale.ID.String()), "register checkout completed")
		return nil
	})
	if err != nil {
		var submitErr *submitError
		if errors.As(err, &submitErr) {
			return nil, submitErr.err
		}
		return nil, err
	}
	result.Register = view
	return result, nil
}

// Reset discards the transaction, including a completed sale on display.
func (s *service) Reset(ctx context.Context, actor sales.Actor) (*View, error) {
	release, err := s.lock(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := s.store.Delete(ctx, actor.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: delete register transaction")
	}
	return NewView(pos.NewTransaction(s.pricing)), nil
}

// mutate loads the cashier's transaction under the register lock, applies fn
// and persists the result. A failing fn leaves the stored state as it was,
// except for a failed checkout which persists the released payment lock.
func (s *service) mutate(ctx context.Context, actor sales.Actor, fn func(txn *pos.Transaction) error) (*View, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cashier required")
	}
	release, err := s.lock(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	txn, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := fn(txn); err != nil {
		var submitErr *submitError
		if errors.As(err, &submitErr) {
			if saveErr := s.save(ctx, actor.UserID, txn); saveErr != nil {
				return nil, saveErr
			}
			return nil, err
		}
		return nil, mapEngineError(err)
	}
	if err := s.save(ctx, actor.UserID, txn); err != nil {
		return nil, err
	}
	return NewView(txn), nil
}

func (s *service) lock(ctx context.Context, cashierID uuid.UUID) (func(), error) {
	release, ok, err := s.store.Lock(ctx, cashierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: lock register")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "register is busy with another request")
	}
	return release, nil
}

func (s *service) load(ctx context.Context, cashierID uuid.UUID) (*pos.Transaction, error) {
	txn := pos.NewTransaction(s.pricing)
	cp, err := s.store.Load(ctx, cashierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: load register transaction")
	}
	if cp != nil {
		txn.Resume(*cp)
	}
	return txn, nil
}

func (s *service) save(ctx context.Context, cashierID uuid.UUID, txn *pos.Transaction) error {
	if err := s.store.Save(ctx, cashierID, txn.Checkpoint()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: save register transaction")
	}
	return nil
}

func submissionFrom(txn *pos.Transaction, input CheckoutInput) sales.SubmitSaleInput {
	items := txn.Items()
	out := sales.SubmitSaleInput{
		Items:          make([]sales.SubmitSaleItem, 0, len(items)),
		PaymentMethod:  txn.PaymentMethod(),
		DiscountAmount: txn.Totals().DiscountAmount,
		Notes:          input.Notes,
		CardSourceID:   input.CardSourceID,
	}
	for _, item := range items {
		out.Items = append(out.Items, sales.SubmitSaleItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if customer := txn.Customer(); customer != nil {
		id := customer.ID
		out.CustomerID = &id
	}
	if phone := txn.MomoPhone(); phone != "" {
		out.MomoPhone = &phone
	}
	if txn.PaymentMethod() == enums.PaymentMethodCash {
		cash := txn.CashReceived()
		out.CashReceived = &cash
	}
	return out
}

func requirePriceAuthority(actor sales.Actor, original, price decimal.Decimal) error {
	if price.IsNegative() {
		return pos.ErrNegativePrice
	}
	if price.LessThan(original) && !actor.Role.AtLeast(enums.StaffRoleManager) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "price below catalogue requires a manager")
	}
	return nil
}

func insufficientStock(product pos.Product, txn *pos.Transaction, requested int) error {
	inCart := 0
	if line, ok := txn.Item(product.ID); ok {
		inCart = line.Quantity
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
		"productId": product.ID,
		"name":      product.Name,
		"available": product.CurrentStock,
		"inCart":    inCart,
		"requested": requested,
	})
}

// editable mirrors the engine's own guard so callers see the state error
// before any catalogue lookups.
func editable(txn *pos.Transaction) error {
	if txn.CurrentSale() != nil {
		return pos.ErrSaleFinalized
	}
	if txn.State() == pos.StateAwaitingPayment {
		return pos.ErrPaymentInProgress
	}
	return nil
}

func lineNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart").
		WithDetails(map[string]any{"productId": productID})
}

// submitError marks a failure from the sales service so mutate persists the
// released payment lock and passes the error through untouched.
type submitError struct {
	err error
}

func (e *submitError) Error() string { return e.err.Error() }
func (e *submitError) Unwrap() error { return e.err }

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, pos.ErrPaymentInProgress),
		errors.Is(err, pos.ErrSaleFinalized),
		errors.Is(err, pos.ErrNotAwaitingPay):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, err.Error())
	case errors.Is(err, pos.ErrEmptyCart),
		errors.Is(err, pos.ErrPaymentMethod),
		errors.Is(err, pos.ErrMomoPhoneRequired),
		errors.Is(err, pos.ErrNegativePrice):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return err
}
