package repository

import (
	"context"
	"time"

	"visamate-backend/kv"
	"visamate-backend/models"

	"github.com/google/uuid"
)

// GenerationJobRepository handles storage operations for generation jobs
type GenerationJobRepository struct {
	store kv.Store
}

// NewGenerationJobRepository creates a new generation job repository
func NewGenerationJobRepository(store kv.Store) *GenerationJobRepository {
	return &GenerationJobRepository{store: store}
}

func jobKey(userID, id uuid.UUID) string {
	return kv.Key("job", userID.String(), id.String())
}

// Create creates a new generation job
func (r *GenerationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	return kv.PutJSONIfAbsent(ctx, r.store, jobKey(job.UserID, job.ID), job)
}

// GetByID retrieves a generation job by ID
func (r *GenerationJobRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.GenerationJob, error) {
	return kv.GetJSON[models.GenerationJob](ctx, r.store, jobKey(userID, id))
}

// update loads the job, applies fn and writes it back
func (r *GenerationJobRepository) update(ctx context.Context, userID, id uuid.UUID, fn func(*models.GenerationJob)) error {
	job, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	return kv.PutJSON(ctx, r.store, jobKey(userID, id), job)
}

// UpdateStatus updates the status of a generation job
func (r *GenerationJobRepository) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status models.GenerationJobStatus) error {
	return r.update(ctx, userID, id, func(j *models.GenerationJob) {
		j.Status = status
	})
}

// Complete marks a generation job as completed with its content
func (r *GenerationJobRepository) Complete(ctx context.Context, userID, id uuid.UUID, content string) error {
	return r.update(ctx, userID, id, func(j *models.GenerationJob) {
		now := time.Now().UTC()
		j.Status = models.JobStatusCompleted
		j.Content = &content
		j.CompletedAt = &now
	})
}

// Fail marks a generation job as failed
func (r *GenerationJobRepository) Fail(ctx context.Context, userID, id uuid.UUID, errorMessage string) error {
	return r.update(ctx, userID, id, func(j *models.GenerationJob) {
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &errorMessage
	})
}
