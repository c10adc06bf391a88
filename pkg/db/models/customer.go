package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is a walk-in or returning buyer attached to sales.
type Customer struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name       string          `gorm:"column:name;not null"`
	Phone      *string         `gorm:"column:phone;uniqueIndex"`
	Email      *string         `gorm:"column:email"`
	Notes      *string         `gorm:"column:notes"`
	TotalSpent decimal.Decimal `gorm:"column:total_spent;type:numeric(14,2);not null;default:0"`
	Visits     int             `gorm:"column:visits;not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
