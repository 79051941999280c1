package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"visamate-backend/config"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when no object exists at a storage path
var ErrObjectNotFound = errors.New("object not found")

// Storage interface for file storage operations
type Storage interface {
	// Upload stores a file under the user's namespace and returns the storage path
	Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data io.Reader, size int64) (string, error)

	// Download retrieves a file by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes a file by storage path
	Delete(ctx context.Context, storagePath string) error

	// URL returns a URL a browser can fetch the object from
	URL(ctx context.Context, storagePath string) (string, error)
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinIO StorageType = "minio"
)

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch StorageType(cfg.StorageType) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.StorageLocalPath, cfg.PublicBaseURL)
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	case StorageTypeMinIO:
		return NewMinIOStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
	}
}

// generateStoragePath returns "<userID>/<random>_<name>". The random
// component keeps two uploads of the same filename apart.
func generateStoragePath(userID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	baseName := strings.TrimSuffix(filepath.Base(filename), ext)
	baseName = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_").Replace(baseName)
	if baseName == "" || baseName == "." {
		baseName = "file"
	}
	return fmt.Sprintf("%s/%s_%s%s", userID, uuid.NewString(), baseName, strings.ToLower(ext))
}

// ContentType determines content type from filename
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
