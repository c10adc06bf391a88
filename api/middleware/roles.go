package middleware

import (
	"net/http"

	"github.com/supserrr/vevurn-sub002/api/responses"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// RequireRole admits staff ranked at or above min
// (cashier < manager < admin). It must run after Auth.
func RequireRole(min enums.StaffRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || !p.Role.AtLeast(min) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeForbidden, "%s role required", min))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
