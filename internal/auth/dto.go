package auth

import (
	"github.com/supserrr/vevurn-sub002/internal/users"
)

// LoginRequest captures the staff credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the (possibly expired) access token and its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login or refresh.
type LoginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int            `json:"expiresIn"`
	User         *users.UserDTO `json:"user"`
}
