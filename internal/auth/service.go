package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/internal/users"
	pkgAuth "github.com/supserrr/vevurn-sub002/pkg/auth"
	"github.com/supserrr/vevurn-sub002/pkg/auth/session"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// Service logs staff in and out of the register.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessions interface {
	Open(ctx context.Context, userID uuid.UUID) (session.Grant, error)
	Rotate(ctx context.Context, accessID, refreshToken string) (session.Grant, error)
	Revoke(ctx context.Context, accessID string) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessions
	Hasher         passwordHasher
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

type service struct {
	ServiceParams
	now func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case p.SessionManager == nil:
		return nil, errors.New("session manager is required")
	case p.Hasher == nil:
		return nil, errors.New("password hasher is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{ServiceParams: p, now: time.Now}, nil
}

// unauthorized keeps every credential failure indistinguishable to callers.
func unauthorized(msg string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	grant, err := s.SessionManager.Open(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open session")
	}
	return s.respond(ctx, user, grant, now)
}

// Refresh trades the refresh token bound to the access token's jti for a new
// pair. The role in the new access token is re-read from the user row, so a
// demotion takes effect at the next refresh.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.JWTConfig, req.AccessToken)
	if err != nil {
		return nil, unauthorized("invalid access token")
	}

	grant, err := s.SessionManager.Rotate(ctx, claims.ID, req.RefreshToken)
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return nil, unauthorized("invalid refresh token")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	reason := ""
	user, err := s.UserRepo.FindByID(ctx, grant.UserID)
	switch {
	case grant.UserID != claims.UserID:
		reason = "invalid refresh token"
	case err != nil || !user.IsActive:
		reason = "account disabled"
	}
	if reason != "" {
		if err := s.SessionManager.Revoke(ctx, grant.AccessID); err != nil {
			s.Logger.Warn(s.Logger.WithField(ctx, "error", err.Error()), "revoke rejected refresh failed")
		}
		return nil, unauthorized(reason)
	}
	return s.respond(ctx, user, grant, s.now().UTC())
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return unauthorized("missing session")
	}
	if err := s.SessionManager.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) respond(ctx context.Context, user *models.User, grant session.Grant, now time.Time) (*LoginResponse, error) {
	token, err := pkgAuth.MintAccessToken(s.JWTConfig, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		JTI:    grant.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	s.Logger.Info(s.Logger.WithUserID(ctx, user.ID.String()), "session issued")
	return &LoginResponse{
		AccessToken:  token,
		RefreshToken: grant.RefreshToken,
		ExpiresIn:    s.JWTConfig.ExpirationMinutes * 60,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const badCredentials = "invalid credentials"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, unauthorized(badCredentials)
	}
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthorized(badCredentials)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	ok, err := s.Hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive || !user.Role.IsValid() {
		return nil, unauthorized(badCredentials)
	}

	if s.Hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}
	return user, nil
}

// rehash upgrades a stored hash to the current cost. Failure only costs the
// upgrade, never the login.
func (s *service) rehash(ctx context.Context, id uuid.UUID, password string) {
	hash, err := s.Hasher.Hash(password)
	if err == nil {
		err = s.UserRepo.UpdatePasswordHash(ctx, id, hash)
	}
	if err != nil {
		s.Logger.Warn(s.Logger.WithField(ctx, "error", err.Error()), "password rehash failed")
	}
}
