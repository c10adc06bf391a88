package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

type principalKey struct{}

// Principal is the authenticated staff member behind a request.
type Principal struct {
	UserID uuid.UUID
	Role   enums.StaffRole
	// SessionID is the access token jti that keys the Redis session.
	SessionID string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom reports false on routes that did not pass through Auth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}
