// Package auth mints and verifies the HS256 access tokens handed to tills.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// clockSkew tolerates tills whose clocks drift from the server's.
const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// AccessTokenPayload is what a token is minted from.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.StaffRole
	Name   string
	// JTI doubles as the Redis session key; minted when empty.
	JTI string
}

// AccessTokenClaims is the token body. The jti is RegisteredClaims.ID.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.StaffRole `json:"role"`
	Name   string          `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func checkConfig(cfg config.JWTConfig, minting bool) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case minting && cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	case minting && cfg.ExpirationMinutes <= 0:
		return errors.New("jwt expiration minutes must be positive")
	}
	return nil
}

// MintAccessToken signs a token valid from now for cfg.ExpirationMinutes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, p AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg, true); err != nil {
		return "", err
	}
	if p.UserID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	if !p.Role.IsValid() {
		return "", fmt.Errorf("invalid staff role %q", p.Role)
	}
	jti := strings.TrimSpace(p.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	token := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID: p.UserID,
		Role:   p.Role,
		Name:   p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and lifetime.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return parse(cfg, raw, jwt.WithLeeway(clockSkew), jwt.WithExpirationRequired())
}

// ParseAccessTokenAllowExpired skips the time checks so refresh can read the
// jti of an expired token. Signature and issuer still have to match.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return parse(cfg, raw, jwt.WithoutClaimsValidation())
}

func parse(cfg config.JWTConfig, raw string, extra ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg, false); err != nil {
		return nil, err
	}
	parser := jwt.NewParser(append(extra,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)...)

	claims := new(AccessTokenClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}
