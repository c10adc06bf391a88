package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/internal/customers"
	"github.com/supserrr/vevurn-sub002/internal/pos"
	product "github.com/supserrr/vevurn-sub002/internal/products"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/metrics"
	"github.com/supserrr/vevurn-sub002/pkg/money"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
	"github.com/supserrr/vevurn-sub002/pkg/outbox/payloads"
	"github.com/supserrr/vevurn-sub002/pkg/square"
)

// Service records, lists and voids sales.
type Service interface {
	Submit(ctx context.Context, actor Actor, input SubmitSaleInput) (*SaleDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
	List(ctx context.Context, input ListSalesInput) (*SaleListResult, error)
	Void(ctx context.Context, actor Actor, saleID uuid.UUID, reason string) (*SaleDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cardCharger interface {
	ChargeCard(ctx context.Context, params square.PaymentCreateParams) (*square.Charge, error)
}

// ServiceParams wires the sales service. Cards is optional; without it card
// payments are rejected.
type ServiceParams struct {
	Tx        txRunner
	Repo      *Repository
	Products  *product.Repository
	Customers *customers.Repository
	Outbox    outboxEmitter
	Cards     cardCharger
	Pricing   pos.Pricing
	Currency  string
	Metrics   *metrics.SalesMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	repo      *Repository
	products  *product.Repository
	customers *customers.Repository
	outbox    outboxEmitter
	cards     cardCharger
	pricing   pos.Pricing
	currency  string
	metrics   *metrics.SalesMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Pricing == (pos.Pricing{}) {
		params.Pricing = pos.DefaultPricing()
	}
	if strings.TrimSpace(params.Currency) == "" {
		params.Currency = money.DefaultCurrency
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		products:  params.Products,
		customers: params.Customers,
		outbox:    params.Outbox,
		cards:     params.Cards,
		pricing:   params.Pricing,
		currency:  params.Currency,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       params.Now,
	}, nil
}

// Submit validates the payload, charges cards up front, then records the
// sale, decrements stock and queues its events in one transaction. Totals
// are always recomputed from the submitted lines.
func (s *service) Submit(ctx context.Context, actor Actor, input SubmitSaleInput) (*SaleDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cashier required")
	}
	if err := validateSubmit(&input, s.cards != nil); err != nil {
		return nil, err
	}

	catalogue, err := s.loadCatalogue(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	if err := checkStock(catalogue, input.Items); err != nil {
		return nil, err
	}
	if err := checkPriceOverrides(actor, catalogue, input.Items); err != nil {
		return nil, err
	}

	lines := buildCartItems(catalogue, input.Items)
	totals := pos.ComputeTotals(lines, input.DiscountAmount, s.pricing)

	var change *decimal.Decimal
	if input.PaymentMethod == enums.PaymentMethodCash {
		if input.CashReceived.LessThan(totals.TotalAmount) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash received is less than the sale total").
				WithDetails(map[string]any{"totalAmount": totals.TotalAmount.String(), "cashReceived": input.CashReceived.String()})
		}
		diff := input.CashReceived.Sub(totals.TotalAmount)
		change = &diff
	}

	now := s.now().UTC()
	saleID := uuid.New()
	ctx = s.logg.WithSaleID(ctx, saleID.String())
	ctx = s.logg.WithCashierID(ctx, actor.UserID.String())

	var paymentRef *string
	if input.PaymentMethod == enums.PaymentMethodCard {
		charge, err := s.cards.ChargeCard(ctx, square.PaymentCreateParams{
			Amount:         money.MinorUnits(totals.TotalAmount, s.pricing.Places),
			Currency:       s.currency,
			SourceID:       strings.TrimSpace(*input.CardSourceID),
			IdempotencyKey: saleID.String(),
			Note:           "Vevurn sale " + NewSaleNumber(now, saleID),
			ReferenceID:    saleID.String(),
		})
		if err != nil {
			s.metrics.CardDeclined()
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodePayment, err, "card charge failed")
			}
			return nil, err
		}
		paymentRef = &charge.PaymentID
	}

	sale := &models.Sale{
		ID:               saleID,
		SaleNumber:       NewSaleNumber(now, saleID),
		CashierID:        actor.UserID,
		CustomerID:       input.CustomerID,
		Status:           enums.SaleStatusCompleted,
		PaymentMethod:    input.PaymentMethod,
		MomoPhone:        input.MomoPhone,
		PaymentReference: paymentRef,
		Subtotal:         totals.Subtotal,
		TaxAmount:        totals.TaxAmount,
		DiscountAmount:   totals.DiscountAmount,
		TotalAmount:      totals.TotalAmount,
		CashReceived:     input.CashReceived,
		ChangeAmount:     change,
		Notes:            input.Notes,
		CreatedAt:        now,
	}
	for _, line := range lines {
		sale.Items = append(sale.Items, models.SaleItem{
			SaleID:        saleID,
			ProductID:     line.ProductID,
			Name:          line.Name,
			SKU:           line.SKU,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			OriginalPrice: line.OriginalPrice,
			Discount:      line.Discount,
			TotalPrice:    line.TotalPrice,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.recordSale(ctx, tx, actor, sale)
	})
	if err != nil {
		if paymentRef != nil {
			s.logg.Error(s.logg.WithField(ctx, "payment_reference", *paymentRef), "card charged but sale was not recorded", err)
		}
		return nil, err
	}

	s.metrics.SaleCompleted(sale.PaymentMethod.String(), sale.TotalAmount)
	s.logg.Info(ctx, "sale completed")
	return NewSaleDTO(sale), nil
}

func (s *service) recordSale(ctx context.Context, tx *gorm.DB, actor Actor, sale *models.Sale) error {
	productRepo := s.products.WithTx(tx)

	quantities := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(sale.Items))
	for _, item := range sale.Items {
		if _, seen := quantities[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	locked, err := productRepo.FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock products")
	}
	var lowStock []*models.Product
	for _, id := range ids {
		before, ok := locked[id]
		if !ok || !before.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"productId": id})
		}
		requested := quantities[id]
		if requested > before.CurrentStock {
			return insufficientStock(before, requested)
		}
		after, err := productRepo.AdjustStock(ctx, id, -requested)
		if err != nil {
			if errors.Is(err, product.ErrInsufficientStock) {
				return insufficientStock(before, requested)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement stock")
		}
		if !before.IsLowStock() && after.IsLowStock() {
			lowStock = append(lowStock, after)
		}
	}

	if sale.CustomerID != nil {
		customerRepo := s.customers.WithTx(tx)
		if _, err := customerRepo.FindByID(ctx, *sale.CustomerID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load customer")
		}
		if err := customerRepo.RecordPurchase(ctx, *sale.CustomerID, sale.TotalAmount, 1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update customer stats")
		}
	}

	if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "sale number already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert sale")
	}

	if err := s.outbox.Emit(ctx, tx, s.completedEvent(actor, sale)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale.completed")
	}
	for _, p := range lowStock {
		if err := s.outbox.Emit(ctx, tx, product.StockLowEvent(p, &sale.ID, &actor.UserID)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock.low")
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return NewSaleDTO(sale), nil
}

func (s *service) List(ctx context.Context, input ListSalesInput) (*SaleListResult, error) {
	if err := input.Pagination.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	f := input.Filters
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	rows, next, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list sales")
	}
	out := make([]SaleDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewSaleDTO(&rows[i]))
	}
	return &SaleListResult{Sales: out, NextCursor: next}, nil
}

// Void reverses a completed sale: stock returns to the shelf, customer
// totals are rolled back and sale.voided is queued.
func (s *service) Void(ctx context.Context, actor Actor, saleID uuid.UUID, reason string) (*SaleDTO, error) {
	if !actor.Role.AtLeast(enums.StaffRoleManager) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "voiding a sale requires a manager")
	}
	reason = strings.TrimSpace(reason)
	now := s.now().UTC()
	ctx = s.logg.WithSaleID(ctx, saleID.String())

	var voided *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindForUpdate(ctx, saleID)
		if err != nil {
			return mapLookupError(err)
		}
		if sale.Status == enums.SaleStatusVoided {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sale already voided")
		}
		ok, err := repo.MarkVoided(ctx, saleID, actor.UserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: void sale")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sale already voided")
		}

		productRepo := s.products.WithTx(tx)
		for _, item := range sale.Items {
			if _, err := productRepo.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				if db.IsNotFound(err) {
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: restock item")
			}
		}
		if sale.CustomerID != nil {
			if err := s.customers.WithTx(tx).RecordPurchase(ctx, *sale.CustomerID, sale.TotalAmount.Neg(), -1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reverse customer stats")
			}
		}

		sale.Status = enums.SaleStatusVoided
		sale.VoidedAt = &now
		sale.VoidedBy = &actor.UserID
		if err := s.outbox.Emit(ctx, tx, s.voidedEvent(actor, sale, reason)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale.voided")
		}
		voided = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SaleVoided()
	s.logg.Info(ctx, "sale voided")
	return NewSaleDTO(voided), nil
}

func (s *service) loadCatalogue(ctx context.Context, items []SubmitSaleItem) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(items))
	for _, item := range items {
		if _, ok := out[item.ProductID]; ok {
			continue
		}
		p, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"productId": item.ProductID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if !p.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"productId": item.ProductID})
		}
		out[item.ProductID] = p
	}
	return out, nil
}

func (s *service) completedEvent(actor Actor, sale *models.Sale) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		OccurredAt:    sale.CreatedAt,
		Data: payloads.SaleCompletedEvent{
			SaleID:         sale.ID,
			SaleNumber:     sale.SaleNumber,
			CashierID:      sale.CashierID,
			CustomerID:     sale.CustomerID,
			PaymentMethod:  sale.PaymentMethod,
			Subtotal:       sale.Subtotal,
			TaxAmount:      sale.TaxAmount,
			DiscountAmount: sale.DiscountAmount,
			TotalAmount:    sale.TotalAmount,
			Currency:       s.currency,
			Items:          saleLines(sale.Items),
			CompletedAt:    sale.CreatedAt,
		},
	}
}

func (s *service) voidedEvent(actor Actor, sale *models.Sale, reason string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventSaleVoided,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		OccurredAt:    *sale.VoidedAt,
		Data: payloads.SaleVoidedEvent{
			SaleID:      sale.ID,
			SaleNumber:  sale.SaleNumber,
			VoidedBy:    actor.UserID,
			Reason:      reason,
			TotalAmount: sale.TotalAmount,
			Currency:    s.currency,
			Items:       saleLines(sale.Items),
			VoidedAt:    *sale.VoidedAt,
		},
	}
}

func saleLines(items []models.SaleItem) []payloads.SaleLine {
	out := make([]payloads.SaleLine, 0, len(items))
	for _, item := range items {
		out = append(out, payloads.SaleLine{
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			OriginalPrice: item.OriginalPrice,
			TotalPrice:    item.TotalPrice,
		})
	}
	return out
}

// buildCartItems prices the submitted lines the same way the register does.
func buildCartItems(catalogue map[uuid.UUID]*models.Product, items []SubmitSaleItem) []pos.CartItem {
	out := make([]pos.CartItem, 0, len(items))
	for _, item := range items {
		p := catalogue[item.ProductID]
		out = append(out, pos.CartItem{
			ID:            uuid.New(),
			ProductID:     p.ID,
			Name:          p.Name,
			SKU:           p.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			OriginalPrice: p.UnitPrice,
			Discount:      money.NonNegative(p.UnitPrice.Sub(item.UnitPrice)),
			TotalPrice:    item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			StockQuantity: p.CurrentStock,
		})
	}
	return out
}

func checkStock(catalogue map[uuid.UUID]*models.Product, items []SubmitSaleItem) error {
	requested := map[uuid.UUID]int{}
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}
	for id, qty := range requested {
		if p := catalogue[id]; qty > p.CurrentStock {
			return insufficientStock(p, qty)
		}
	}
	return nil
}

// checkPriceOverrides keeps cashiers from selling below the catalogue price.
func checkPriceOverrides(actor Actor, catalogue map[uuid.UUID]*models.Product, items []SubmitSaleItem) error {
	if actor.Role.AtLeast(enums.StaffRoleManager) {
		return nil
	}
	for _, item := range items {
		if item.UnitPrice.LessThan(catalogue[item.ProductID].UnitPrice) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "price below catalogue requires a manager").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
	}
	return nil
}

func insufficientStock(p *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
		"productId": p.ID,
		"sku":       p.SKU,
		"name":      p.Name,
		"available": p.CurrentStock,
		"requested": requested,
	})
}

func mapLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load sale")
}
