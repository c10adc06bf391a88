package controllers

import (
	"net/http"
	"strings"

	"github.com/supserrr/vevurn-sub002/api/validators"
	"github.com/supserrr/vevurn-sub002/internal/users"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Role     string `json:"role" validate:"required,oneof=admin manager cashier"`
	Password string `json:"password,omitempty" validate:"omitempty,max=128"`
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// UsersCreate provisions a staff account. Without a password the response
// carries a generated temporary one.
func UsersCreate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("users", svc != nil, logg, func(r *http.Request) (reply, error) {
		body, err := decode[createUserRequest](r)
		if err != nil {
			return reply{}, err
		}
		res, err := svc.Create(r.Context(), users.CreateStaffInput{
			Email:    body.Email,
			Name:     validators.SanitizeString(body.Name, 120),
			Role:     enums.StaffRole(body.Role),
			Password: body.Password,
		})
		return created(res), err
	})
}

// UsersList lists staff, optionally narrowed by ?role.
func UsersList(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("users", svc != nil, logg, func(r *http.Request) (reply, error) {
		var role *enums.StaffRole
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			parsed, err := enums.ParseStaffRole(raw)
			if err != nil {
				return reply{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
			}
			role = &parsed
		}
		list, err := svc.List(r.Context(), role)
		if list == nil {
			list = []users.UserDTO{}
		}
		return ok(list), err
	})
}

func UserGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("users", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "userId")
		if err != nil {
			return reply{}, err
		}
		u, err := svc.Get(r.Context(), id)
		return ok(u), err
	})
}

func UserSetActive(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("users", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "userId")
		if err != nil {
			return reply{}, err
		}
		body, err := decode[setActiveRequest](r)
		if err != nil {
			return reply{}, err
		}
		return noContent, svc.SetActive(r.Context(), id, *body.IsActive)
	})
}
