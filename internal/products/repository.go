package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/pagination"
)

var ErrInsufficientStock = errors.New("insufficient stock")

const defaultLowStockScan = 500

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) q(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func active(tx *gorm.DB) *gorm.DB { return tx.Where("is_active = ?", true) }

func atOrBelowMin(tx *gorm.DB) *gorm.DB { return tx.Where("current_stock <= min_stock") }

func inCategory(category string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("LOWER(category) = ?", strings.ToLower(category))
	}
}

// matching looks for term in name or SKU, or an exact barcode scan.
func matching(term string) func(*gorm.DB) *gorm.DB {
	pattern := "%" + strings.ToLower(term) + "%"
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR barcode = ?)", pattern, pattern, term)
	}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.q(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByIDsForUpdate row-locks the given products in id order so concurrent
// checkouts lock in the same sequence. Must run inside a transaction.
func (r *Repository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	locked := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}
	var rows []models.Product
	if err := db.ForUpdate(r.q(ctx)).Where("id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		locked[rows[i].ID] = &rows[i]
	}
	return locked, nil
}

func (r *Repository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	return p, r.q(ctx).Create(p).Error
}

func (r *Repository) Update(ctx context.Context, p *models.Product) (*models.Product, error) {
	return p, r.q(ctx).Save(p).Error
}

// AdjustStock adds delta to current stock in one statement. The row is left
// untouched when the result would be negative.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	res := r.q(ctx).Model(&models.Product{}).
		Where("id = ? AND current_stock + ? >= 0", id, delta).
		Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if res.Error != nil {
		return nil, res.Error
	}
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientStock
	}
	return p, nil
}

// List returns one page of the catalogue, newest first.
func (r *Repository) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	f := input.Filters
	var scopes []func(*gorm.DB) *gorm.DB
	if !f.IncludeInactive {
		scopes = append(scopes, active)
	}
	if f.Category != nil {
		if c := strings.TrimSpace(*f.Category); c != "" {
			scopes = append(scopes, inCategory(c))
		}
	}
	if f.LowStock {
		scopes = append(scopes, atOrBelowMin)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		scopes = append(scopes, matching(term))
	}

	qb, err := pagination.Keyset(r.q(ctx).Model(&models.Product{}).Scopes(scopes...), input.Pagination)
	if err != nil {
		return nil, err
	}
	var rows []models.Product
	if err := qb.Find(&rows).Error; err != nil {
		return nil, err
	}
	rows, next := pagination.Page(rows, input.Pagination, func(p *models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	out := &ProductListResult{Products: make([]ProductDTO, len(rows)), NextCursor: next}
	for i := range rows {
		out.Products[i] = *NewProductDTO(&rows[i])
	}
	return out, nil
}

// ListLowStock returns active products at or below their reorder point, the
// emptiest first.
func (r *Repository) ListLowStock(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultLowStockScan
	}
	var rows []models.Product
	err := r.q(ctx).Scopes(active, atOrBelowMin).
		Order("current_stock ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
