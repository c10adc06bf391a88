package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// User is a staff member who can sign in to a register.
type User struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email        string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name         string          `gorm:"column:name;not null"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	Role         enums.StaffRole `gorm:"column:role;type:text;not null"`
	IsActive     bool            `gorm:"column:is_active;not null"`
	LastLoginAt  *time.Time      `gorm:"column:last_login_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
