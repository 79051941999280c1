package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"visamate-backend/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage implements Storage interface for MinIO and other S3-compatible servers
type MinIOStorage struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewMinIOStorage creates a MinIO storage instance, creating the bucket when missing
func NewMinIOStorage(ctx context.Context, cfg *config.Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{Region: cfg.AWSRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorage{
		client:     client,
		bucket:     cfg.MinIOBucket,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// Upload stores a file in MinIO. size may be -1 when unknown.
func (s *MinIOStorage) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data io.Reader, size int64) (string, error) {
	storagePath := generateStoragePath(userID, filename)
	if contentType == "" {
		contentType = ContentType(filename)
	}
	if size <= 0 {
		size = -1
	}

	_, err := s.client.PutObject(ctx, s.bucket, storagePath, data, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"user_id": userID.String()},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}

	return storagePath, nil
}

// Download retrieves a file from MinIO
func (s *MinIOStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, storagePath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from MinIO: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to stat object in MinIO: %w", err)
	}
	return obj, nil
}

// Delete removes a file from MinIO
func (s *MinIOStorage) Delete(ctx context.Context, storagePath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, storagePath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}

// URL returns a presigned GET URL
func (s *MinIOStorage) URL(ctx context.Context, storagePath string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, storagePath, s.presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign MinIO URL: %w", err)
	}
	return u.String(), nil
}
