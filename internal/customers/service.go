package customers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/internal/pos"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// Service manages the customer directory.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*CustomerDTO, error)
	Search(ctx context.Context, query string, limit int) ([]CustomerDTO, error)
	Create(ctx context.Context, input CreateCustomerInput) (*CustomerDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCustomerInput) (*CustomerDTO, error)
	LoadForRegister(ctx context.Context, id uuid.UUID) (*pos.Customer, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CustomerDTO, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return NewCustomerDTO(customer), nil
}

func (s *service) LoadForRegister(ctx context.Context, id uuid.UUID) (*pos.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return ToPOS(customer), nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]CustomerDTO, error) {
	rows, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: search customers")
	}
	out := make([]CustomerDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewCustomerDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input CreateCustomerInput) (*CustomerDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	phone, err := normalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}
	customer := &models.Customer{
		Name:  name,
		Phone: phone,
		Email: trimmedOrNil(input.Email),
		Notes: trimmedOrNil(input.Notes),
	}
	created, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return NewCustomerDTO(created), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCustomerInput) (*CustomerDTO, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		customer.Name = name
	}
	if input.Phone != nil {
		phone, err := normalizePhone(input.Phone)
		if err != nil {
			return nil, err
		}
		customer.Phone = phone
	}
	if input.Email != nil {
		customer.Email = trimmedOrNil(input.Email)
	}
	if input.Notes != nil {
		customer.Notes = trimmedOrNil(input.Notes)
	}
	updated, err := s.repo.Update(ctx, customer)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return NewCustomerDTO(updated), nil
}

func normalizePhone(value *string) (*string, error) {
	phone := trimmedOrNil(value)
	if phone == nil {
		return nil, nil
	}
	compact := strings.NewReplacer(" ", "", "-", "").Replace(*phone)
	if !phonePattern.MatchString(compact) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number")
	}
	return &compact, nil
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
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load customer")
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "phone number already registered")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: save customer")
}
