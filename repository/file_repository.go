package repository

import (
	"context"
	"sort"
	"time"

	"visamate-backend/kv"
	"visamate-backend/models"

	"github.com/google/uuid"
)

// FileRepository handles storage operations for file metadata
type FileRepository struct {
	store kv.Store
}

// NewFileRepository creates a new file repository
func NewFileRepository(store kv.Store) *FileRepository {
	return &FileRepository{store: store}
}

func filePrefix(userID uuid.UUID) string {
	return kv.Key("file", userID.String()) + ":"
}

func fileKey(userID, id uuid.UUID) string {
	return filePrefix(userID) + id.String()
}

// Create creates a new file record. A client-supplied ID is kept so that
// retried metadata saves are idempotent.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	return kv.PutJSON(ctx, r.store, fileKey(file.UserID, file.ID), file)
}

// GetByID retrieves a user's file by ID
func (r *FileRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	return kv.GetJSON[models.File](ctx, r.store, fileKey(userID, id))
}

// ListByUserID retrieves all files for a user, newest first
func (r *FileRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.File, error) {
	files, err := kv.ListJSON[*models.File](ctx, r.store, filePrefix(userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	return files, nil
}

// Delete deletes a file record
func (r *FileRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return r.store.Delete(ctx, fileKey(userID, id))
}
