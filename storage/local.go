package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a new local storage instance. baseURL is the
// public prefix the files are served under.
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// BasePath returns the directory files are stored in
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// resolve maps a storage path to a file under basePath, refusing escapes
func (s *LocalStorage) resolve(storagePath string) (string, error) {
	clean := filepath.Clean("/" + storagePath)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage path %q", storagePath)
	}
	return filepath.Join(s.basePath, clean), nil
}

// Upload stores a file locally
func (s *LocalStorage) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data io.Reader, size int64) (string, error) {
	storagePath := generateStoragePath(userID, filename)
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := writeObject(file, data); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return storagePath, nil
}

// writeObject copies data into w and closes it. A failed close means the
// object may be truncated, so it is reported like a failed write.
func writeObject(w io.WriteCloser, data io.Reader) error {
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Download retrieves a file from local storage
func (s *LocalStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes a file from local storage
func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// URL returns the public URL under the configured base URL
func (s *LocalStorage) URL(ctx context.Context, storagePath string) (string, error) {
	return s.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(storagePath), "/"), nil
}
