// Package session keeps staff refresh sessions in Redis, keyed by the jti of
// the access token they were issued with.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errNoAccessID          = errors.New("access id is required")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Grant is a live session: the jti to put in the next access token and the
// refresh token handed to the client. The refresh token is never stored.
type Grant struct {
	AccessID     string
	RefreshToken string
	UserID       uuid.UUID
}

type entry struct {
	UserID   uuid.UUID `json:"user_id"`
	Digest   []byte    `json:"digest"`
	IssuedAt time.Time `json:"issued_at"`
}

type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(client *pkgredis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= 0 || ttl <= access {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: client, ttl: ttl, now: time.Now}, nil
}

// Open starts a session for userID.
func (m *Manager) Open(ctx context.Context, userID uuid.UUID) (Grant, error) {
	if userID == uuid.Nil {
		return Grant{}, errors.New("user id is required")
	}
	return m.grant(ctx, userID)
}

// Rotate consumes the session under accessID if refreshToken matches it and
// opens a replacement for the same user. The old session is gone afterwards
// whether or not the token matched, so a leaked pair is single use.
func (m *Manager) Rotate(ctx context.Context, accessID, refreshToken string) (Grant, error) {
	if strings.TrimSpace(accessID) == "" || refreshToken == "" {
		return Grant{}, ErrInvalidRefreshToken
	}
	raw, err := m.store.GetDel(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case pkgredis.IsNil(err):
		return Grant{}, ErrInvalidRefreshToken
	case err != nil:
		return Grant{}, err
	}

	var prev entry
	if json.Unmarshal([]byte(raw), &prev) != nil {
		return Grant{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare(prev.Digest, digest(refreshToken)) != 1 {
		return Grant{}, ErrInvalidRefreshToken
	}
	return m.grant(ctx, prev.UserID)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errNoAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errNoAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case pkgredis.IsNil(err):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) grant(ctx context.Context, userID uuid.UUID) (Grant, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return Grant{}, fmt.Errorf("generate refresh token: %w", err)
	}
	g := Grant{
		AccessID:     uuid.NewString(),
		RefreshToken: base64.RawURLEncoding.EncodeToString(secret),
		UserID:       userID,
	}
	payload, err := json.Marshal(entry{UserID: userID, Digest: digest(g.RefreshToken), IssuedAt: m.now().UTC()})
	if err != nil {
		return Grant{}, fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(g.AccessID), payload, m.ttl); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func digest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
