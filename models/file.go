package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus represents the processing status of an uploaded file
type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusProcessed FileStatus = "processed"
	FileStatusFailed    FileStatus = "failed"
)

// File represents uploaded file metadata
type File struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Filename    string     `json:"filename"`
	MimeType    string     `json:"mime_type"`
	Size        int64      `json:"size"`
	Category    string     `json:"category"`
	StoragePath string     `json:"storage_path"`
	URL         string     `json:"url"`
	Status      FileStatus `json:"status"`
	Pages       int        `json:"pages,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
}

// StoredObject is what the raw upload endpoint returns
type StoredObject struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Pages    int    `json:"pages,omitempty"`
}
