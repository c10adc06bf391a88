package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/security"
)

// CreateStaffInput is the admin payload for a new staff account. An empty
// password makes the service generate a temporary one.
type CreateStaffInput struct {
	Email    string
	Name     string
	Role     enums.StaffRole
	Password string
}

// CreateStaffResult returns the new user and, when generated, its temporary password.
type CreateStaffResult struct {
	User              *UserDTO `json:"user"`
	TemporaryPassword string   `json:"temporaryPassword,omitempty"`
}

// Service manages staff accounts.
type Service interface {
	Create(ctx context.Context, input CreateStaffInput) (*CreateStaffResult, error)
	List(ctx context.Context, role *enums.StaffRole) ([]UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

type service struct {
	repo   *Repository
	hasher passwordHasher
}

func NewService(repo *Repository, hasher passwordHasher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	return &service{repo: repo, hasher: hasher}, nil
}

func (s *service) Create(ctx context.Context, input CreateStaffInput) (*CreateStaffResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	password := input.Password
	temporary := ""
	if password == "" {
		generated, err := security.GenerateTempPassword(12)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password = generated
		temporary = generated
	} else if err := security.ValidatePassword(password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         input.Role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert user")
	}
	return &CreateStaffResult{User: FromModel(user), TemporaryPassword: temporary}, nil
}

func (s *service) List(ctx context.Context, role *enums.StaffRole) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return FromModel(user), nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update user")
	}
	return nil
}
