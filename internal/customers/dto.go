package customers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
)

// CustomerDTO is the customer payload returned to clients.
type CustomerDTO struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Phone      *string         `json:"phone,omitempty"`
	Email      *string         `json:"email,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	Visits     int             `json:"visits"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// CreateCustomerInput is the validated payload to register a customer.
type CreateCustomerInput struct {
	Name  string
	Phone *string
	Email *string
	Notes *string
}

// UpdateCustomerInput holds optional fields for a partial update.
type UpdateCustomerInput struct {
	Name  *string
	Phone *string
	Email *string
	Notes *string
}

func NewCustomerDTO(c *models.Customer) *CustomerDTO {
	return &CustomerDTO{
		ID:         c.ID,
		Name:       c.Name,
		Phone:      c.Phone,
		Email:      c.Email,
		Notes:      c.Notes,
		TotalSpent: c.TotalSpent,
		Visits:     c.Visits,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ToPOS converts the row into the customer reference attached to a cart.
func ToPOS(c *models.Customer) *pos.Customer {
	out := &pos.Customer{ID: c.ID, Name: c.Name}
	if c.Phone != nil {
		out.Phone = *c.Phone
	}
	return out
}
