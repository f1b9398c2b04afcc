package model

import "time"

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthUser is the request-scoped identity attached by the auth middleware.
type AuthUser struct {
	ID    string
	Email string
	Roles []string
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Region       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenRecord is the refresh-token state kept in the token store,
// keyed by the token's jti.
type TokenRecord struct {
	UserID    string
	Revoked   bool
	ExpiresAt time.Time
}
