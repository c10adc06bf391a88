package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supserrr/vevurn-sub002/pkg/auth"
	"github.com/supserrr/vevurn-sub002/pkg/auth/session"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/redis/redistest"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "vevurn-test", ExpirationMinutes: 60, RefreshTokenTTLMinutes: 120}

type sessionFunc func(ctx context.Context, accessID string) (bool, error)

func (f sessionFunc) HasSession(ctx context.Context, accessID string) (bool, error) {
	return f(ctx, accessID)
}

var live = sessionFunc(func(context.Context, string) (bool, error) { return true, nil })

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func tokenFor(t *testing.T, userID uuid.UUID, role enums.StaffRole, jti string) string {
	t.Helper()
	token, err := auth.MintAccessToken(jwtCfg, time.Now(), auth.AccessTokenPayload{
		UserID: userID, Role: role, Name: "Test Staff", JTI: jti,
	})
	require.NoError(t, err)
	return token
}

func serveAuth(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejections(t *testing.T) {
	valid := tokenFor(t, uuid.New(), enums.StaffRoleCashier, uuid.NewString())

	cases := []struct {
		name     string
		header   string
		sessions session.AccessSessionChecker
		status   int
	}{
		{"missing header", "", live, http.StatusUnauthorized},
		{"garbage token", "Bearer invalid", live, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, live, http.StatusUnauthorized},
		{"revoked session", "Bearer " + valid, sessionFunc(func(context.Context, string) (bool, error) { return false, nil }), http.StatusUnauthorized},
		{"store outage", "Bearer " + valid, sessionFunc(func(context.Context, string) (bool, error) { return false, errors.New("redis down") }), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := Auth(jwtCfg, tc.sessions, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
			rec := serveAuth(h, tc.header)
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestAuthAttachesPrincipal(t *testing.T) {
	client, _ := redistest.Client()
	sessions, err := session.NewManager(client, jwtCfg)
	require.NoError(t, err)
	userID := uuid.New()
	grant, err := sessions.Open(context.Background(), userID)
	require.NoError(t, err)

	var got Principal
	h := Auth(jwtCfg, sessions, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
	}))

	rec := serveAuth(h, "bearer "+tokenFor(t, userID, enums.StaffRoleManager, grant.AccessID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Principal{UserID: userID, Role: enums.StaffRoleManager, SessionID: grant.AccessID}, got)

	require.NoError(t, sessions.Revoke(context.Background(), grant.AccessID))
	rec = serveAuth(h, "Bearer "+tokenFor(t, userID, enums.StaffRoleManager, grant.AccessID))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"  bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		token, ok := bearer(tt.header)
		assert.Equal(t, tt.token, token, tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
	}
}
