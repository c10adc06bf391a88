package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
)

const defaultSearchLimit = 50

// Repository exposes customer persistence operations.
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

func (r *Repository) Create(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *Repository) Update(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// Search matches name or phone, newest customers first.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.Customer, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultSearchLimit
	}
	qb := r.db.WithContext(ctx).Model(&models.Customer{})
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR phone LIKE ?)", pattern, "%"+q+"%")
	}
	var rows []models.Customer
	err := qb.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// RecordPurchase adds amount to total_spent and visits to the visit count.
// Negative values reverse a voided sale.
func (r *Repository) RecordPurchase(ctx context.Context, id uuid.UUID, amount decimal.Decimal, visits int) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_spent": gorm.Expr("total_spent + ?", amount),
			"visits":      gorm.Expr("visits + ?", visits),
		}).Error
}
