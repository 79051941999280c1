package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"visamate-backend/kv"
	"visamate-backend/models"

	"github.com/google/uuid"
)

// ErrEmailTaken is returned when another account already uses the email
var ErrEmailTaken = errors.New("email already registered")

// UserRepository handles storage operations for user profiles
type UserRepository struct {
	store kv.Store
	locks sync.Map
}

// NewUserRepository creates a new user repository
func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Lock serializes read-modify-write cycles on one user record across
// every service sharing this repository. Call the returned func to release.
func (r *UserRepository) Lock(id uuid.UUID) func() {
	v, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func userKey(id uuid.UUID) string {
	return kv.Key("user", id.String())
}

func emailKey(email string) string {
	return kv.Key("user_email", strings.ToLower(strings.TrimSpace(email)))
}

type emailIndex struct {
	UserID uuid.UUID `json:"user_id"`
}

// Create stores a new user. The email index is claimed first so two
// concurrent sign-ups with one address cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := kv.PutJSONIfAbsent(ctx, r.store, emailKey(user.Email), emailIndex{UserID: user.ID})
	if errors.Is(err, kv.ErrExists) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}

	if err := kv.PutJSON(ctx, r.store, userKey(user.ID), user); err != nil {
		// Release the email so the address is not locked forever
		_ = r.store.Delete(ctx, emailKey(user.Email))
		return err
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return kv.GetJSON[models.User](ctx, r.store, userKey(id))
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	idx, err := kv.GetJSON[emailIndex](ctx, r.store, emailKey(email))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, idx.UserID)
}

// Update replaces the stored user and bumps UpdatedAt
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	return kv.PutJSON(ctx, r.store, userKey(user.ID), user)
}

// Delete removes a user and its email index
func (r *UserRepository) Delete(ctx context.Context, user *models.User) error {
	if err := r.store.Delete(ctx, userKey(user.ID)); err != nil {
		return err
	}
	return r.store.Delete(ctx, emailKey(user.Email))
}
