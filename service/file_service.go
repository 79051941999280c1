package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"
	"visamate-backend/storage"

	"github.com/google/uuid"
)

// FileService handles raw uploads and file metadata
type FileService struct {
	fileRepo         *repository.FileRepository
	storage          storage.Storage
	timeline         *TimelineService
	maxFileSize      int64
	allowedMimeTypes map[string]bool
	logger           *slog.Logger
}

// FileServiceOption is a functional option for FileService
type FileServiceOption func(*FileService)

// FileWithRepository sets the file metadata repository
func FileWithRepository(repo *repository.FileRepository) FileServiceOption {
	return func(s *FileService) {
		s.fileRepo = repo
	}
}

// FileWithStorage sets the object storage backend
func FileWithStorage(st storage.Storage) FileServiceOption {
	return func(s *FileService) {
		s.storage = st
	}
}

// FileWithTimelineService records uploads on the user's timeline
func FileWithTimelineService(ts *TimelineService) FileServiceOption {
	return func(s *FileService) {
		s.timeline = ts
	}
}

// FileWithMaxSize sets the upload size limit in bytes
func FileWithMaxSize(n int64) FileServiceOption {
	return func(s *FileService) {
		s.maxFileSize = n
	}
}

// FileWithLogger sets the logger
func FileWithLogger(logger *slog.Logger) FileServiceOption {
	return func(s *FileService) {
		s.logger = logger
	}
}

// NewFileService creates a new file service
func NewFileService(opts ...FileServiceOption) *FileService {
	s := &FileService{
		maxFileSize: 10 * 1024 * 1024, // 10MB
		allowedMimeTypes: map[string]bool{
			"application/pdf":    true,
			"text/plain":         true,
			"application/msword": true, // .doc
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true, // .docx
			"image/jpeg": true,
			"image/png":  true,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "file_service"))
	return s
}

// MaxFileSize returns the upload size limit in bytes
func (s *FileService) MaxFileSize() int64 {
	return s.maxFileSize
}

// UploadRequest represents a raw file upload
type UploadRequest struct {
	UserID      uuid.UUID
	Filename    string
	ContentType string
	Data        io.Reader
}

// Upload validates and stores the bytes, returning the storage path and a
// URL. PDFs are inspected for their page count.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) (*models.StoredObject, error) {
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}

	contentType := normalizeContentType(req.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentType(req.Filename)
	}
	if !s.allowedMimeTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(req.Data, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: maximum is %d bytes", ErrFileTooLarge, s.maxFileSize)
	}

	obj := &models.StoredObject{
		Filename: req.Filename,
		MimeType: contentType,
		Size:     int64(len(data)),
	}
	if contentType == "application/pdf" {
		pages, err := storage.InspectPDF(data)
		if err != nil {
			s.logger.Warn("could not inspect PDF",
				slog.String("filename", req.Filename),
				slog.String("error", err.Error()),
			)
		} else {
			obj.Pages = pages
		}
	}

	path, err := s.storage.Upload(ctx, req.UserID, req.Filename, contentType, bytes.NewReader(data), obj.Size)
	if err != nil {
		return nil, err
	}
	obj.Path = path

	if obj.URL, err = s.storage.URL(ctx, path); err != nil {
		return nil, err
	}
	return obj, nil
}

// RecordRequest persists metadata for an object uploaded earlier
type RecordRequest struct {
	UserID uuid.UUID
	File   models.File
}

// Record saves file metadata. Saving the same file ID twice overwrites the
// record, so clients may retry safely.
func (s *FileService) Record(ctx context.Context, req RecordRequest) (*models.File, error) {
	if s.fileRepo == nil {
		return nil, errors.New("file repository not set")
	}

	file := req.File
	file.UserID = req.UserID
	if strings.TrimSpace(file.Filename) == "" || file.StoragePath == "" {
		return nil, fmt.Errorf("%w: filename and storage_path are required", ErrInvalidInput)
	}
	storagePath, err := ownedStoragePath(req.UserID, file.StoragePath)
	if err != nil {
		return nil, err
	}
	file.StoragePath = storagePath
	if file.Status == "" {
		file.Status = models.FileStatusProcessed
	}
	if file.URL == "" && s.storage != nil {
		if url, err := s.storage.URL(ctx, file.StoragePath); err == nil {
			file.URL = url
		}
	}

	_, existsErr := s.fileRepo.GetByID(ctx, req.UserID, file.ID)
	isNew := file.ID == uuid.Nil || errors.Is(existsErr, kv.ErrNotFound)

	if err := s.fileRepo.Create(ctx, &file); err != nil {
		return nil, err
	}

	if isNew && s.timeline != nil {
		_, err := s.timeline.Append(ctx, AppendTimelineRequest{
			UserID:      req.UserID,
			Title:       "Document Uploaded",
			Description: file.Filename,
			Type:        models.TimelineDocument,
		})
		if err != nil {
			s.logger.Warn("failed to append upload to timeline",
				slog.String("user_id", req.UserID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return &file, nil
}

// List returns the user's file records, newest first
func (s *FileService) List(ctx context.Context, userID uuid.UUID) ([]*models.File, error) {
	if s.fileRepo == nil {
		return nil, errors.New("file repository not set")
	}
	files, err := s.fileRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*models.File{}
	}
	return files, nil
}

// Open returns the file record and a reader over its stored bytes.
// The caller must close the reader.
func (s *FileService) Open(ctx context.Context, userID, fileID uuid.UUID) (*models.File, io.ReadCloser, error) {
	if s.fileRepo == nil || s.storage == nil {
		return nil, nil, errors.New("file repository or storage not set")
	}

	file, err := s.fileRepo.GetByID(ctx, userID, fileID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, ErrFileNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.storage.Download(ctx, file.StoragePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, ErrFileNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download file: %w", err)
	}
	return file, rc, nil
}

// Delete removes the metadata record and then the stored object
func (s *FileService) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	if s.fileRepo == nil {
		return errors.New("file repository not set")
	}

	file, err := s.fileRepo.GetByID(ctx, userID, fileID)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}

	if err := s.fileRepo.Delete(ctx, userID, fileID); err != nil {
		return err
	}

	if s.storage != nil && file.StoragePath != "" {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.storage.Delete(delCtx, file.StoragePath); err != nil {
			// orphaned objects are tolerated
			s.logger.Warn("failed to delete stored object",
				slog.String("path", file.StoragePath),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// ownedStoragePath checks that p names an object inside the user's
// namespace. Paths must already be clean: no "." or ".." segments, no empty
// segments and no backslashes.
func ownedStoragePath(userID uuid.UUID, p string) (string, error) {
	outside := fmt.Errorf("%w: storage_path outside user namespace", ErrInvalidInput)
	if strings.ContainsRune(p, '\\') || path.Clean(p) != p {
		return "", outside
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", outside
		}
	}
	rest, ok := strings.CutPrefix(p, userID.String()+"/")
	if !ok || rest == "" {
		return "", outside
	}
	return p, nil
}

// Discard deletes an uploaded object that has no metadata record, such as
// one whose record save was abandoned by the client. Objects referenced by
// a record must be removed through Delete. A missing object is not an error.
func (s *FileService) Discard(ctx context.Context, userID uuid.UUID, storagePath string) error {
	if s.fileRepo == nil || s.storage == nil {
		return errors.New("file repository or storage not set")
	}
	storagePath, err := ownedStoragePath(userID, storagePath)
	if err != nil {
		return err
	}

	files, err := s.fileRepo.ListByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.StoragePath == storagePath {
			return fmt.Errorf("%w: object is recorded as file %s", ErrInvalidInput, f.ID)
		}
	}

	if err := s.storage.Delete(ctx, storagePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete stored object: %w", err)
	}
	s.logger.Info("discarded unrecorded object",
		slog.String("user_id", userID.String()),
		slog.String("path", storagePath),
	)
	return nil
}

func normalizeContentType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}
