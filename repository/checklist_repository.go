package repository

import (
	"context"

	"visamate-backend/kv"
	"visamate-backend/models"

	"github.com/google/uuid"
)

// ChecklistRepository stores one checklist document per user
type ChecklistRepository struct {
	store kv.Store
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(store kv.Store) *ChecklistRepository {
	return &ChecklistRepository{store: store}
}

func checklistKey(userID uuid.UUID) string {
	return kv.Key("checklist", userID.String())
}

// Get retrieves the user's checklist
func (r *ChecklistRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Checklist, error) {
	return kv.GetJSON[models.Checklist](ctx, r.store, checklistKey(userID))
}

// Put replaces the user's checklist wholesale
func (r *ChecklistRepository) Put(ctx context.Context, userID uuid.UUID, checklist *models.Checklist) error {
	return kv.PutJSON(ctx, r.store, checklistKey(userID), checklist)
}
