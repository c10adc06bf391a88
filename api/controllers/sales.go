package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/api/validators"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/pagination"
)

// ReceiptRenderer renders the printable receipt of a stored sale.
type ReceiptRenderer interface {
	Receipt(ctx context.Context, saleID uuid.UUID) (string, error)
}

type submitSaleItemRequest struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type submitSaleRequest struct {
	CustomerID     *uuid.UUID              `json:"customerId,omitempty"`
	Items          []submitSaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  string                  `json:"paymentMethod" validate:"required"`
	MomoPhone      *string                 `json:"momoPhone,omitempty" validate:"omitempty,max=20"`
	CardSourceID   *string                 `json:"cardSourceId,omitempty" validate:"omitempty,max=255"`
	DiscountAmount decimal.Decimal         `json:"discountAmount"`
	CashReceived   *decimal.Decimal        `json:"cashReceived,omitempty"`
	Notes          *string                 `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type voidSaleRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// SalesSubmit records a sale sent in one piece by a client that keeps its
// own cart.
func SalesSubmit(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return serveStaff("sales", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		body, err := decode[submitSaleRequest](r)
		if err != nil {
			return reply{}, err
		}
		in, err := body.input()
		if err != nil {
			return reply{}, err
		}
		sale, err := svc.Submit(r.Context(), actor, in)
		return created(sale), err
	})
}

func (b submitSaleRequest) input() (sales.SubmitSaleInput, error) {
	method, err := enums.ParsePaymentMethod(b.PaymentMethod)
	if err != nil {
		return sales.SubmitSaleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	items := make([]sales.SubmitSaleItem, len(b.Items))
	for i, item := range b.Items {
		if item.ProductID == uuid.Nil {
			return sales.SubmitSaleInput{}, pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d].productId is required", i)
		}
		items[i] = sales.SubmitSaleItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return sales.SubmitSaleInput{
		CustomerID:     b.CustomerID,
		Items:          items,
		PaymentMethod:  method,
		MomoPhone:      b.MomoPhone,
		CardSourceID:   b.CardSourceID,
		DiscountAmount: b.DiscountAmount,
		CashReceived:   b.CashReceived,
		Notes:          b.Notes,
	}, nil
}

// SalesList pages through sales history; cashiers only ever see their own.
// Bare dates in from/to are read in the shop's timezone.
func SalesList(svc sales.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	if loc == nil {
		loc = time.UTC
	}
	return serveStaff("sales", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		filters, err := parseSalesFilters(r, loc)
		if err != nil {
			return reply{}, err
		}
		if !actor.Role.AtLeast(enums.StaffRoleManager) {
			own := actor.UserID
			filters.CashierID = &own
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return reply{}, err
		}
		page, err := svc.List(r.Context(), sales.ListSalesInput{
			Filters:    filters,
			Pagination: pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))},
		})
		return ok(page), err
	})
}

func parseSalesFilters(r *http.Request, loc *time.Location) (f sales.ListSalesFilters, err error) {
	if f.From, err = validators.ParseQueryTime(r, "from", loc); err != nil {
		return f, err
	}
	if f.To, err = validators.ParseQueryTime(r, "to", loc); err != nil {
		return f, err
	}
	if f.CashierID, err = validators.ParseQueryUUID(r, "cashierId"); err != nil {
		return f, err
	}
	q := r.URL.Query()
	if f.Method, err = optionalEnum(q.Get("method"), "method", enums.ParsePaymentMethod); err != nil {
		return f, err
	}
	f.Status, err = optionalEnum(q.Get("status"), "status", enums.ParseSaleStatus)
	return f, err
}

func optionalEnum[T any](raw, name string, parse func(string) (T, error)) (*T, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return &v, nil
}

// SaleGet answers not found, rather than forbidden, when a cashier asks for
// someone else's sale.
func SaleGet(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return serveStaff("sales", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		id, err := validators.PathUUID(r, "saleId")
		if err != nil {
			return reply{}, err
		}
		sale, err := svc.Get(r.Context(), id)
		if err != nil {
			return reply{}, err
		}
		if !actor.Role.AtLeast(enums.StaffRoleManager) && sale.CashierID != actor.UserID {
			return reply{}, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return ok(sale), nil
	})
}

// SaleVoid reverses a completed sale and restores its stock.
func SaleVoid(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return serveStaff("sales", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		id, err := validators.PathUUID(r, "saleId")
		if err != nil {
			return reply{}, err
		}
		body, err := decode[voidSaleRequest](r)
		if err != nil {
			return reply{}, err
		}
		sale, err := svc.Void(r.Context(), actor, id, body.Reason)
		return ok(sale), err
	})
}

// SaleReceipt reprints a sale's receipt as plain text.
func SaleReceipt(svc ReceiptRenderer, logg *logger.Logger) http.HandlerFunc {
	return serve("receipt", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "saleId")
		if err != nil {
			return reply{}, err
		}
		text, err := svc.Receipt(r.Context(), id)
		return plain(text), err
	})
}
