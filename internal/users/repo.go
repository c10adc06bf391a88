package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// Repository persists staff accounts. Emails are stored lowercased by the
// service; lookups here match exactly.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(where, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List orders staff by name, optionally keeping one role.
func (r *Repository) List(ctx context.Context, role *enums.StaffRole) ([]models.User, error) {
	q := r.db.WithContext(ctx).Order("name ASC, id ASC")
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	var rows []models.User
	return rows, q.Find(&rows).Error
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.set(ctx, id, "last_login_at", at)
}

// UpdatePasswordHash stores a rehash after the argon2 parameters change.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.set(ctx, id, "password_hash", hash)
}

func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.set(ctx, id, "is_active", active)
}

// set writes one column without touching updated_at hooks. A missing user
// is gorm.ErrRecordNotFound.
func (r *Repository) set(ctx context.Context, id uuid.UUID, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
