package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the token pair handed to a client after sign-in
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RefreshToken is the server-side record of an issued refresh token.
// Only the SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	Hash      string    `json:"hash"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// Expired reports whether the token is past its expiry at t
func (r *RefreshToken) Expired(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}
