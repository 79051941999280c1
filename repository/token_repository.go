package repository

import (
	"context"

	"visamate-backend/kv"
	"visamate-backend/models"
)

// TokenRepository stores refresh token records by hash
type TokenRepository struct {
	store kv.Store
}

// NewTokenRepository creates a new refresh token repository
func NewTokenRepository(store kv.Store) *TokenRepository {
	return &TokenRepository{store: store}
}

func refreshKey(hash string) string {
	return kv.Key("refresh", hash)
}

// Create stores a refresh token record
func (r *TokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return kv.PutJSONIfAbsent(ctx, r.store, refreshKey(token.Hash), token)
}

// Get retrieves a refresh token record by hash
func (r *TokenRepository) Get(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return kv.GetJSON[models.RefreshToken](ctx, r.store, refreshKey(hash))
}

// Revoke marks a refresh token as revoked
func (r *TokenRepository) Revoke(ctx context.Context, hash string) error {
	token, err := r.Get(ctx, hash)
	if err != nil {
		return err
	}
	token.Revoked = true
	return kv.PutJSON(ctx, r.store, refreshKey(hash), token)
}
