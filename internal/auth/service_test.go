package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/supserrr/vevurn-sub002/pkg/auth"
	"github.com/supserrr/vevurn-sub002/pkg/auth/session"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/redis/redistest"
	"github.com/supserrr/vevurn-sub002/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "vevurn",
	ExpirationMinutes:      15,
	RefreshTokenTTLMinutes: 720,
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type stubUserRepo struct {
	users     map[uuid.UUID]*models.User
	lastLogin map[uuid.UUID]time.Time
	rehashed  map[uuid.UUID]string
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{
		users:     map[uuid.UUID]*models.User{},
		lastLogin: map[uuid.UUID]time.Time{},
		rehashed:  map[uuid.UUID]string{},
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin[id] = at
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	s.rehashed[id] = hash
	return nil
}

func buildTestService(t *testing.T, repo *stubUserRepo) (Service, *session.Manager) {
	t.Helper()
	client, _ := redistest.Client()
	manager, err := session.NewManager(client, testJWTConfig)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: manager,
		Hasher:         security.NewHasher(testPasswordConfig),
		JWTConfig:      testJWTConfig,
	})
	require.NoError(t, err)
	return svc, manager
}

func newCashier(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := security.NewHasher(testPasswordConfig).Hash(password)
	require.NoError(t, err)
	return &models.User{
		ID:           uuid.New(),
		Email:        "cashier@vevurn.rw",
		Name:         "Claudine",
		PasswordHash: hash,
		Role:         enums.StaffRoleCashier,
		IsActive:     true,
	}
}

func TestLoginIssuesTokensAndSession(t *testing.T) {
	user := newCashier(t, "till2024pass")
	repo := newStubUserRepo(user)
	svc, manager := buildTestService(t, repo)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  Cashier@Vevurn.rw ", Password: "till2024pass"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, 15*60, resp.ExpiresIn)
	require.Equal(t, enums.StaffRoleCashier, resp.User.Role)
	require.Contains(t, repo.lastLogin, user.ID)

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "Claudine", claims.Name)

	ok, err := manager.HasSession(context.Background(), claims.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := newCashier(t, "till2024pass")
	disabled := newCashier(t, "till2024pass")
	disabled.Email = "old@vevurn.rw"
	disabled.IsActive = false
	svc, _ := buildTestService(t, newStubUserRepo(user, disabled))

	for _, req := range []LoginRequest{
		{Email: user.Email, Password: "wrong-pass1"},
		{Email: "nobody@vevurn.rw", Password: "till2024pass"},
		{Email: "", Password: "till2024pass"},
		{Email: disabled.Email, Password: "till2024pass"},
	} {
		_, err := svc.Login(context.Background(), req)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "email %q: %v", req.Email, err)
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	user := newCashier(t, "till2024pass")
	svc, manager := buildTestService(t, newStubUserRepo(user))
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "till2024pass"})
	require.NoError(t, err)
	oldClaims, err := pkgAuth.ParseAccessToken(testJWTConfig, login.AccessToken)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	stillThere, err := manager.HasSession(ctx, oldClaims.ID)
	require.NoError(t, err)
	require.False(t, stillThere)

	// The old refresh token is single use.
	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	newClaims, err := pkgAuth.ParseAccessToken(testJWTConfig, refreshed.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, newClaims.ID))
	active, err := manager.HasSession(ctx, newClaims.ID)
	require.NoError(t, err)
	require.False(t, active)
}

func TestRefreshRejectsDisabledUser(t *testing.T) {
	user := newCashier(t, "till2024pass")
	repo := newStubUserRepo(user)
	svc, _ := buildTestService(t, repo)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "till2024pass"})
	require.NoError(t, err)
	repo.users[user.ID].IsActive = false

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginRehashesOutdatedHash(t *testing.T) {
	weak := config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 2, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	hash, err := security.NewHasher(weak).Hash("till2024pass")
	require.NoError(t, err)
	user := newCashier(t, "till2024pass")
	user.PasswordHash = hash
	repo := newStubUserRepo(user)
	svc, _ := buildTestService(t, repo)

	_, err = svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "till2024pass"})
	require.NoError(t, err)
	require.Contains(t, repo.rehashed, user.ID)
}
