package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationJobStatus represents the status of a generation job
type GenerationJobStatus string

const (
	JobStatusPending    GenerationJobStatus = "pending"
	JobStatusInProgress GenerationJobStatus = "in_progress"
	JobStatusCompleted  GenerationJobStatus = "completed"
	JobStatusFailed     GenerationJobStatus = "failed"
)

// DocumentKind identifies which generator produced a document
type DocumentKind string

const (
	DocumentCoverLetter          DocumentKind = "cover_letter"
	DocumentRecommendationLetter DocumentKind = "recommendation_letter"
	DocumentMockMaterials        DocumentKind = "mock_materials"
)

// Valid reports whether k names a known generator
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentCoverLetter, DocumentRecommendationLetter, DocumentMockMaterials:
		return true
	}
	return false
}

// GenerationJob tracks an AI-refined document generation
type GenerationJob struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"user_id"`
	Kind         DocumentKind        `json:"kind"`
	Status       GenerationJobStatus `json:"status"`
	Filename     string              `json:"filename"`
	Content      *string             `json:"content,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}
