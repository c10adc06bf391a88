package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/api/validators"
	productsvc "github.com/supserrr/vevurn-sub002/internal/products"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/pagination"
)

type createProductRequest struct {
	SKU          string           `json:"sku" validate:"required,max=64"`
	Barcode      *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name         string           `json:"name" validate:"required,max=200"`
	Category     *string          `json:"category,omitempty" validate:"omitempty,max=80"`
	Brand        *string          `json:"brand,omitempty" validate:"omitempty,max=80"`
	UnitPrice    decimal.Decimal  `json:"unitPrice" validate:"money"`
	CostPrice    *decimal.Decimal `json:"costPrice,omitempty" validate:"omitempty,money"`
	CurrentStock int              `json:"currentStock" validate:"gte=0"`
	MinStock     int              `json:"minStock" validate:"gte=0"`
}

func (b createProductRequest) input() productsvc.CreateProductInput {
	return productsvc.CreateProductInput{
		SKU:          b.SKU,
		Barcode:      b.Barcode,
		Name:         b.Name,
		Category:     b.Category,
		Brand:        b.Brand,
		UnitPrice:    b.UnitPrice,
		CostPrice:    b.CostPrice,
		CurrentStock: b.CurrentStock,
		MinStock:     b.MinStock,
	}
}

type updateProductRequest struct {
	SKU       *string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	Barcode   *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name      *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Category  *string          `json:"category,omitempty" validate:"omitempty,max=80"`
	Brand     *string          `json:"brand,omitempty" validate:"omitempty,max=80"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty" validate:"omitempty,money"`
	CostPrice *decimal.Decimal `json:"costPrice,omitempty" validate:"omitempty,money"`
	MinStock  *int             `json:"minStock,omitempty" validate:"omitempty,gte=0"`
	IsActive  *bool            `json:"isActive,omitempty"`
}

func (b updateProductRequest) input() productsvc.UpdateProductInput {
	return productsvc.UpdateProductInput{
		SKU:       b.SKU,
		Barcode:   b.Barcode,
		Name:      b.Name,
		Category:  b.Category,
		Brand:     b.Brand,
		UnitPrice: b.UnitPrice,
		CostPrice: b.CostPrice,
		MinStock:  b.MinStock,
		IsActive:  b.IsActive,
	}
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// ProductsList browses the catalogue. include_inactive is honoured for
// managers and admins only.
func ProductsList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return serveStaff("product", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return reply{}, err
		}
		q := r.URL.Query()
		filters := productsvc.ProductListFilters{
			Query:           validators.SanitizeString(q.Get("q"), 100),
			LowStock:        q.Get("low_stock") == "true",
			IncludeInactive: q.Get("include_inactive") == "true" && actor.Role.AtLeast(enums.StaffRoleManager),
		}
		if category := validators.SanitizeString(q.Get("category"), 80); category != "" {
			filters.Category = &category
		}
		page, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			Filters:    filters,
			Pagination: pagination.Params{Limit: limit, Cursor: strings.TrimSpace(q.Get("cursor"))},
		})
		return ok(page), err
	})
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("product", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			return reply{}, err
		}
		p, err := svc.GetProduct(r.Context(), id)
		return ok(p), err
	})
}

func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("product", svc != nil, logg, func(r *http.Request) (reply, error) {
		body, err := decode[createProductRequest](r)
		if err != nil {
			return reply{}, err
		}
		p, err := svc.CreateProduct(r.Context(), body.input())
		return created(p), err
	})
}

func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("product", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			return reply{}, err
		}
		body, err := decode[updateProductRequest](r)
		if err != nil {
			return reply{}, err
		}
		p, err := svc.UpdateProduct(r.Context(), id, body.input())
		return ok(p), err
	})
}

// ProductAdjustStock applies a signed delta: receiving stock or writing it off.
func ProductAdjustStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return serveStaff("product", svc != nil, logg, func(r *http.Request, actor sales.Actor) (reply, error) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			return reply{}, err
		}
		body, err := decode[adjustStockRequest](r)
		if err != nil {
			return reply{}, err
		}
		p, err := svc.AdjustStock(r.Context(), actor.UserID, id, body.Delta)
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "product_id", id.String()), "stock adjustment refused")
		}
		return ok(p), err
	})
}
