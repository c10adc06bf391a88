package receipts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/internal/customers"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/internal/users"
)

type saleGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*sales.SaleDTO, error)
}

type staffGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error)
}

type customerGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*customers.CustomerDTO, error)
}

// Service renders receipts for stored sales.
type Service struct {
	sales     saleGetter
	staff     staffGetter
	customers customerGetter
	renderer  *Renderer
}

// NewService builds the receipt service. staff and customers are optional;
// without them the receipt omits the names.
func NewService(salesSvc saleGetter, staff staffGetter, customerSvc customerGetter, renderer *Renderer) (*Service, error) {
	if salesSvc == nil {
		return nil, fmt.Errorf("sales service required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	return &Service{sales: salesSvc, staff: staff, customers: customerSvc, renderer: renderer}, nil
}

// Receipt loads the sale and renders it. Name lookups that fail are left off
// the receipt rather than failing the reprint.
func (s *Service) Receipt(ctx context.Context, saleID uuid.UUID) (string, error) {
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return "", err
	}
	var details Details
	if s.staff != nil {
		if user, err := s.staff.Get(ctx, sale.CashierID); err == nil && user != nil {
			details.CashierName = user.Name
		}
	}
	if s.customers != nil && sale.CustomerID != nil {
		if customer, err := s.customers.Get(ctx, *sale.CustomerID); err == nil && customer != nil {
			details.CustomerName = customer.Name
		}
	}
	return s.renderer.Render(sale, details), nil
}
