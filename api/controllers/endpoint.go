package controllers

import (
	"net/http"

	"github.com/supserrr/vevurn-sub002/api/middleware"
	"github.com/supserrr/vevurn-sub002/api/responses"
	"github.com/supserrr/vevurn-sub002/api/validators"
	"github.com/supserrr/vevurn-sub002/internal/sales"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// reply is what an endpoint wants written on success.
type reply struct {
	status int
	body   any
	text   bool
}

func ok(body any) reply      { return reply{status: http.StatusOK, body: body} }
func created(body any) reply { return reply{status: http.StatusCreated, body: body} }
func plain(body string) reply {
	return reply{status: http.StatusOK, body: body, text: true}
}

var noContent = reply{status: http.StatusNoContent}

type endpoint func(r *http.Request) (reply, error)

// staffEndpoint is an endpoint that needs the signed-in staff member.
type staffEndpoint func(r *http.Request, actor sales.Actor) (reply, error)

// serve adapts fn into a handler. ready is false when the service behind the
// endpoint was not wired, which answers every request with an internal error.
func serve(name string, ready bool, logg *logger.Logger, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", name))
			return
		}
		out, err := fn(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		switch {
		case out.status == http.StatusNoContent:
			w.WriteHeader(out.status)
		case out.text:
			responses.WriteText(w, out.status, out.body.(string))
		default:
			responses.WriteSuccessStatus(w, out.status, out.body)
		}
	}
}

func serveStaff(name string, ready bool, logg *logger.Logger, fn staffEndpoint) http.HandlerFunc {
	return serve(name, ready, logg, func(r *http.Request) (reply, error) {
		actor, err := actorFrom(r)
		if err != nil {
			return reply{}, err
		}
		return fn(r, actor)
	})
}

func actorFrom(r *http.Request) (sales.Actor, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return sales.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return sales.Actor{UserID: p.UserID, Role: p.Role}, nil
}

func decode[T any](r *http.Request) (T, error) {
	var body T
	err := validators.DecodeJSONBody(r, &body)
	return body, err
}
