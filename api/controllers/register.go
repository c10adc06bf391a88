package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/api/validators"
	"github.com/supserrr/vevurn-sub002/internal/register"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

type addItemRequest struct {
	ProductID   uuid.UUID        `json:"productId" validate:"required"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
	CustomPrice *decimal.Decimal `json:"customPrice,omitempty"`
}

type updateItemRequest struct {
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

type setCustomerRequest struct {
	CustomerID *uuid.UUID `json:"customerId"`
}

type setPaymentRequest struct {
	Method    string `json:"method" validate:"required"`
	MomoPhone string `json:"momoPhone,omitempty" validate:"omitempty,max=20"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type checkoutRequest struct {
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	CardSourceID *string `json:"cardSourceId,omitempty" validate:"omitempty,max=255"`
}

type registerOp func(ctx context.Context, actor sales.Actor) (*register.View, error)

// registerHandler runs one register operation for the signed-in cashier and
// writes the resulting screen state. prepare parses the request and picks
// the operation; it runs after the service check so it may reference svc.
func registerHandler(svc register.Service, logg *logger.Logger, prepare func(r *http.Request) (registerOp, error)) http.HandlerFunc {
	return serveStaff("register", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		op, err := prepare(r)
		if err != nil {
			return reply{}, err
		}
		view, err := op(r.Context(), actor)
		return ok(view), err
	})
}

// withBody decodes a T and binds it into the operation built by bind.
func withBody[T any](bind func(T) registerOp) func(*http.Request) (registerOp, error) {
	return func(r *http.Request) (registerOp, error) {
		body, err := decode[T](r)
		if err != nil {
			return nil, err
		}
		return bind(body), nil
	}
}

func RegisterGet(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(*http.Request) (registerOp, error) { return svc.Get, nil })
}

func RegisterAddItem(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(r *http.Request) (registerOp, error) {
		body, err := decode[addItemRequest](r)
		if err != nil {
			return nil, err
		}
		if body.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
		}
		return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
			return svc.AddItem(ctx, actor, register.AddItemInput{
				ProductID:   body.ProductID,
				Quantity:    body.Quantity,
				CustomPrice: body.CustomPrice,
			})
		}, nil
	})
}

// RegisterUpdateItem changes either the quantity or the unit price of a line.
func RegisterUpdateItem(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(r *http.Request) (registerOp, error) {
		productID, err := validators.PathUUID(r, "productId")
		if err != nil {
			return nil, err
		}
		body, err := decode[updateItemRequest](r)
		if err != nil {
			return nil, err
		}
		switch {
		case body.Quantity != nil && body.UnitPrice != nil:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "send either quantity or unitPrice, not both")
		case body.Quantity != nil:
			return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
				return svc.UpdateQuantity(ctx, actor, productID, *body.Quantity)
			}, nil
		case body.UnitPrice != nil:
			return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
				return svc.UpdatePrice(ctx, actor, productID, *body.UnitPrice)
			}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity or unitPrice is required")
	})
}

func RegisterRemoveItem(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(r *http.Request) (registerOp, error) {
		productID, err := validators.PathUUID(r, "productId")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
			return svc.RemoveItem(ctx, actor, productID)
		}, nil
	})
}

func RegisterClear(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(*http.Request) (registerOp, error) { return svc.Clear, nil })
}

// RegisterSetCustomer attaches a customer; a null customerId detaches it.
func RegisterSetCustomer(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, withBody(func(body setCustomerRequest) registerOp {
		return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
			return svc.SetCustomer(ctx, actor, body.CustomerID)
		}
	}))
}

func RegisterSetPayment(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(r *http.Request) (registerOp, error) {
		body, err := decode[setPaymentRequest](r)
		if err != nil {
			return nil, err
		}
		method, err := enums.ParsePaymentMethod(body.Method)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
			return svc.SetPayment(ctx, actor, method, body.MomoPhone)
		}, nil
	})
}

func RegisterSetCashReceived(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, withBody(func(body amountRequest) registerOp {
		return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
			return svc.SetCashReceived(ctx, actor, body.Amount)
		}
	}))
}

func RegisterSetDiscount(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, withBody(func(body amountRequest) registerOp {
		return func(ctx context.Context, actor sales.Actor) (*register.View, error) {
			return svc.SetDiscount(ctx, actor, body.Amount)
		}
	}))
}

func RegisterBeginPayment(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(*http.Request) (registerOp, error) { return svc.BeginPayment, nil })
}

func RegisterCancelPayment(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(*http.Request) (registerOp, error) { return svc.CancelPayment, nil })
}

func RegisterReset(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return registerHandler(svc, logg, func(*http.Request) (registerOp, error) { return svc.Reset, nil })
}

// RegisterCheckout records the register transaction as a sale. The body is
// optional.
func RegisterCheckout(svc register.Service, logg *logger.Logger) http.HandlerFunc {
	return serveStaff("register", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		var body checkoutRequest
		if r.ContentLength != 0 {
			var err error
			if body, err = decode[checkoutRequest](r); err != nil {
				return reply{}, err
			}
		}
		res, err := svc.Checkout(r.Context(), actor, register.CheckoutInput{
			Notes:        body.Notes,
			CardSourceID: body.CardSourceID,
		})
		return created(res), err
	})
}
