package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/pagination"
)

// Repository persists sales and their items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the sale and its items in one statement group.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") }).
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindForUpdate loads and row-locks a sale with its items.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := db.ForUpdate(r.db.WithContext(ctx)).First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("sale_id = ?", id).Order("name ASC").Find(&sale.Items).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// MarkVoided flips a completed sale to voided. It reports false when the
// sale was not in the completed state.
func (r *Repository) MarkVoided(ctx context.Context, id, voidedBy uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, enums.SaleStatusCompleted).
		Updates(map[string]any{
			"status":    enums.SaleStatusVoided,
			"voided_at": at,
			"voided_by": voidedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns one page of sales ordered newest first.
func (r *Repository) List(ctx context.Context, input ListSalesInput) ([]models.Sale, string, error) {
	qb := r.db.WithContext(ctx).Model(&models.Sale{})
	filter := input.Filters
	if filter.From != nil {
		qb = qb.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		qb = qb.Where("created_at < ?", filter.To.UTC())
	}
	if filter.CashierID != nil {
		qb = qb.Where("cashier_id = ?", *filter.CashierID)
	}
	if filter.Method != nil {
		qb = qb.Where("payment_method = ?", *filter.Method)
	}
	if filter.Status != nil {
		qb = qb.Where("status = ?", *filter.Status)
	}
	qb, err := pagination.Keyset(qb, input.Pagination)
	if err != nil {
		return nil, "", err
	}

	var rows []models.Sale
	if err := qb.Preload("Items").Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Page(rows, input.Pagination, func(s *models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return rows, next, nil
}
