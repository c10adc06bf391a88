package controllers

import (
	"net/http"

	"github.com/supserrr/vevurn-sub002/api/middleware"
	"github.com/supserrr/vevurn-sub002/internal/auth"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// AuthLogin trades email and password for a token pair.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("auth", svc != nil, logg, func(r *http.Request) (reply, error) {
		body, err := decode[auth.LoginRequest](r)
		if err != nil {
			return reply{}, err
		}
		res, err := svc.Login(r.Context(), body)
		return ok(res), err
	})
}

// AuthRefresh exchanges a refresh token, and the access token it was issued
// with, for a fresh pair.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("auth", svc != nil, logg, func(r *http.Request) (reply, error) {
		body, err := decode[auth.RefreshRequest](r)
		if err != nil {
			return reply{}, err
		}
		res, err := svc.Refresh(r.Context(), body)
		return ok(res), err
	})
}

// AuthLogout revokes the session behind the caller's access token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("auth", svc != nil, logg, func(r *http.Request) (reply, error) {
		p, _ := middleware.PrincipalFrom(r.Context())
		return noContent, svc.Logout(r.Context(), p.SessionID)
	})
}
