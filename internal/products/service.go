package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
	"github.com/supserrr/vevurn-sub002/pkg/outbox/payloads"
)

// Service exposes catalogue and stock operations.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	AdjustStock(ctx context.Context, actorID, id uuid.UUID, delta int) (*ProductDTO, error)
	LoadForRegister(ctx context.Context, id uuid.UUID) (pos.Product, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU          string
	Barcode      *string
	Name         string
	Category     *string
	Brand        *string
	UnitPrice    decimal.Decimal
	CostPrice    *decimal.Decimal
	CurrentStock int
	MinStock     int
}

// UpdateProductInput holds optional mutation values for a product. Stock is
// changed through AdjustStock only.
type UpdateProductInput struct {
	SKU       *string
	Barcode   *string
	Name      *string
	Category  *string
	Brand     *string
	UnitPrice *decimal.Decimal
	CostPrice *decimal.Decimal
	MinStock  *int
	IsActive  *bool
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	outbox   outboxEmitter
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, emitter outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, dbClient: dbClient, outbox: emitter}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return NewProductDTO(product), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if err := input.Pagination.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	result, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return result, nil
}

// LoadForRegister returns the pricing record for an active product.
func (s *service) LoadForRegister(ctx context.Context, id uuid.UUID) (pos.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pos.Product{}, mapLookupError(err)
	}
	if !product.IsActive {
		return pos.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return ToPOS(product), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" || input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if err := validatePrices(input.UnitPrice, input.CostPrice); err != nil {
		return nil, err
	}
	if input.CurrentStock < 0 || input.MinStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock levels must not be negative")
	}

	product := &models.Product{
		SKU:          input.SKU,
		Barcode:      trimmedOrNil(input.Barcode),
		Name:         input.Name,
		Category:     trimmedOrNil(input.Category),
		Brand:        trimmedOrNil(input.Brand),
		UnitPrice:    input.UnitPrice,
		CostPrice:    input.CostPrice,
		CurrentStock: input.CurrentStock,
		MinStock:     input.MinStock,
		IsActive:     true,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, mapWriteError(err, "db: insert product")
	}
	return NewProductDTO(created), nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if err := applyUpdateToProduct(product, input); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, mapWriteError(err, "db: update product")
	}
	return NewProductDTO(updated), nil
}

// AdjustStock changes on-hand stock by delta. Crossing into low stock queues a
// stock.low event in the same transaction.
func (s *service) AdjustStock(ctx context.Context, actorID, id uuid.UUID, delta int) (*ProductDTO, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	var result *models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		before, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		after, err := txRepo.AdjustStock(ctx, id, delta)
		if err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return pkgerrors.New(pkgerrors.CodeConflict, "stock cannot go below zero").
					WithDetails(map[string]any{"currentStock": before.CurrentStock, "delta": delta})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: adjust stock")
		}
		if !before.IsLowStock() && after.IsLowStock() {
			if err := s.outbox.Emit(ctx, tx, StockLowEvent(after, nil, &actorID)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock.low")
			}
		}
		result = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewProductDTO(result), nil
}

// StockLowEvent builds the outbox event for a product that reached its minimum.
func StockLowEvent(product *models.Product, saleID, actorID *uuid.UUID) outbox.DomainEvent {
	event := outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Version:       1,
		Data: payloads.StockLowEvent{
			ProductID:    product.ID,
			SKU:          product.SKU,
			Name:         product.Name,
			CurrentStock: product.CurrentStock,
			MinStock:     product.MinStock,
			SaleID:       saleID,
			DetectedAt:   time.Now().UTC(),
		},
	}
	if actorID != nil && *actorID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: *actorID}
	}
	return event
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) error {
	if input.SKU != nil {
		sku := strings.TrimSpace(*input.SKU)
		if sku == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "sku must not be empty")
		}
		product.SKU = sku
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		product.Name = name
	}
	if input.Barcode != nil {
		product.Barcode = trimmedOrNil(input.Barcode)
	}
	if input.Category != nil {
		product.Category = trimmedOrNil(input.Category)
	}
	if input.Brand != nil {
		product.Brand = trimmedOrNil(input.Brand)
	}
	if input.UnitPrice != nil {
		product.UnitPrice = *input.UnitPrice
	}
	if input.CostPrice != nil {
		cost := *input.CostPrice
		product.CostPrice = &cost
	}
	if err := validatePrices(product.UnitPrice, product.CostPrice); err != nil {
		return err
	}
	if input.MinStock != nil {
		if *input.MinStock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "min stock must not be negative")
		}
		product.MinStock = *input.MinStock
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	return nil
}

func validatePrices(unit decimal.Decimal, cost *decimal.Decimal) error {
	if unit.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if cost != nil && cost.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost price must not be negative")
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
}

func mapWriteError(err error, message string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "sku or barcode already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
