package controllers

import (
	"net/http"

	"github.com/supserrr/vevurn-sub002/api/validators"
	"github.com/supserrr/vevurn-sub002/internal/customers"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

type customerFields struct {
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type createCustomerRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	customerFields
}

type updateCustomerRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,max=120"`
	customerFields
}

// CustomersSearch backs the register's customer picker: ?q matches name or
// phone.
func CustomersSearch(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("customer", svc != nil, logg, func(r *http.Request) (reply, error) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 50)
		if err != nil {
			return reply{}, err
		}
		found, err := svc.Search(r.Context(), validators.SanitizeString(r.URL.Query().Get("q"), 100), limit)
		return ok(found), err
	})
}

func CustomerGet(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("customer", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "customerId")
		if err != nil {
			return reply{}, err
		}
		c, err := svc.Get(r.Context(), id)
		return ok(c), err
	})
}

func CustomerCreate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("customer", svc != nil, logg, func(r *http.Request) (reply, error) {
		body, err := decode[createCustomerRequest](r)
		if err != nil {
			return reply{}, err
		}
		c, err := svc.Create(r.Context(), customers.CreateCustomerInput{
			Name:  body.Name,
			Phone: body.Phone,
			Email: body.Email,
			Notes: body.Notes,
		})
		return created(c), err
	})
}

func CustomerUpdate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("customer", svc != nil, logg, func(r *http.Request) (reply, error) {
		id, err := validators.PathUUID(r, "customerId")
		if err != nil {
			return reply{}, err
		}
		body, err := decode[updateCustomerRequest](r)
		if err != nil {
			return reply{}, err
		}
		c, err := svc.Update(r.Context(), id, customers.UpdateCustomerInput{
			Name:  body.Name,
			Phone: body.Phone,
			Email: body.Email,
			Notes: body.Notes,
		})
		return ok(c), err
	})
}
