package middleware

import (
	"net/http"
	"strings"

	"github.com/supserrr/vevurn-sub002/api/responses"
	pkgauth "github.com/supserrr/vevurn-sub002/pkg/auth"
	"github.com/supserrr/vevurn-sub002/pkg/auth/session"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// Auth admits requests carrying a valid access token whose Redis session is
// still live, so logout takes effect before the token expires.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			ctx = WithPrincipal(ctx, p)
			if logg != nil {
				ctx = logg.WithUserID(ctx, p.UserID.String())
				ctx = logg.WithActorRole(ctx, string(p.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (Principal, error) {
	raw, ok := bearer(r.Header.Get("Authorization"))
	if !ok {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgauth.ParseAccessToken(cfg, raw)
	if err != nil {
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no session")
	}
	if sessions != nil {
		live, err := sessions.HasSession(r.Context(), claims.ID)
		if err != nil {
			return Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session lookup")
		}
		if !live {
			return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session ended")
		}
	}
	return Principal{UserID: claims.UserID, Role: claims.Role, SessionID: claims.ID}, nil
}

// bearer extracts the token from an "Authorization: Bearer <token>" value.
func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
