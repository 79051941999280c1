package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"visamate-backend/generator"
	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"

	"github.com/google/uuid"
)

// DocumentService generates petition documents from form fields
type DocumentService struct {
	jobRepo       *repository.GenerationJobRepository
	profiles      *ProfileService
	files         *FileService
	refiner       generator.Refiner
	refineTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// DocumentServiceOption is a functional option for DocumentService
type DocumentServiceOption func(*DocumentService)

// DocumentWithGenerationJobRepository sets the generation job repository
func DocumentWithGenerationJobRepository(repo *repository.GenerationJobRepository) DocumentServiceOption {
	return func(s *DocumentService) {
		s.jobRepo = repo
	}
}

// DocumentWithProfileService fills applicant fields from the profile
func DocumentWithProfileService(ps *ProfileService) DocumentServiceOption {
	return func(s *DocumentService) {
		s.profiles = ps
	}
}

// DocumentWithFileService lists uploaded files as exhibits
func DocumentWithFileService(fs *FileService) DocumentServiceOption {
	return func(s *DocumentService) {
		s.files = fs
	}
}

// DocumentWithRefiner sets the AI refiner. Without one, refine requests fail.
func DocumentWithRefiner(r generator.Refiner) DocumentServiceOption {
	return func(s *DocumentService) {
		s.refiner = r
	}
}

// DocumentWithRefineTimeout bounds a single background refinement
func DocumentWithRefineTimeout(d time.Duration) DocumentServiceOption {
	return func(s *DocumentService) {
		s.refineTimeout = d
	}
}

// DocumentWithLogger sets the logger
func DocumentWithLogger(logger *slog.Logger) DocumentServiceOption {
	return func(s *DocumentService) {
		s.logger = logger
	}
}

// NewDocumentService creates a new document service
func NewDocumentService(opts ...DocumentServiceOption) *DocumentService {
	s := &DocumentService{
		refineTimeout: 2 * time.Minute,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "document_service"))
	return s
}

// GenerateRequest represents a request to render a document
type GenerateRequest struct {
	UserID uuid.UUID
	Kind   models.DocumentKind
	Fields map[string]string
	// Refine, when set, starts a background AI refinement job
	Refine       bool
	Instructions string
}

// GenerateResult carries either the rendered document or the refine job id
type GenerateResult struct {
	Document *generator.Document
	JobID    *uuid.UUID
}

// Generate renders a document synchronously, or with Refine set creates a
// generation job and returns immediately
func (s *DocumentService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, req.Kind)
	}

	input := generator.Input{Fields: s.defaultFields(ctx, req.UserID, req.Fields), Now: s.now()}
	if req.Kind == models.DocumentCoverLetter {
		input.Exhibits = s.exhibits(ctx, req.UserID)
	}

	doc, err := generator.Render(req.Kind, input)
	if err != nil {
		if errors.Is(err, generator.ErrMissingFields) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	if !req.Refine {
		return &GenerateResult{Document: doc}, nil
	}

	jobID, err := s.startRefineJob(ctx, req.UserID, doc, req.Instructions)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{JobID: &jobID}, nil
}

func (s *DocumentService) startRefineJob(ctx context.Context, userID uuid.UUID, doc *generator.Document, instructions string) (uuid.UUID, error) {
	if s.refiner == nil {
		return uuid.Nil, ErrRefinerUnavailable
	}
	if s.jobRepo == nil {
		return uuid.Nil, errors.New("generation job repository not set")
	}

	job := &models.GenerationJob{
		ID:       uuid.New(),
		UserID:   userID,
		Kind:     doc.Kind,
		Status:   models.JobStatusPending,
		Filename: doc.Filename,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		s.logger.Error("failed to create generation job", slog.String("error", err.Error()))
		return uuid.Nil, ErrJobCreationFailed
	}

	// detached from the request so the job outlives it
	go s.processJob(context.WithoutCancel(ctx), job, doc.Content, instructions)

	return job.ID, nil
}

func (s *DocumentService) processJob(ctx context.Context, job *models.GenerationJob, draft, instructions string) {
	logger := s.logger.With(slog.String("job_id", job.ID.String()))

	if err := s.jobRepo.UpdateStatus(ctx, job.UserID, job.ID, models.JobStatusInProgress); err != nil {
		logger.Error("failed to mark job in progress", slog.String("error", err.Error()))
	}

	refineCtx, cancel := context.WithTimeout(ctx, s.refineTimeout)
	defer cancel()

	content, err := s.refiner.Refine(refineCtx, job.Kind, draft, instructions)
	if err != nil {
		logger.Warn("refinement failed", slog.String("error", err.Error()))
		if ferr := s.jobRepo.Fail(ctx, job.UserID, job.ID, err.Error()); ferr != nil {
			logger.Error("failed to mark job failed", slog.String("error", ferr.Error()))
		}
		return
	}

	if err := s.jobRepo.Complete(ctx, job.UserID, job.ID, content); err != nil {
		logger.Error("failed to store refined document", slog.String("error", err.Error()))
		return
	}
	logger.Info("refinement completed", slog.Int("chars", len(content)))
}

// GetJob returns a generation job owned by the user
func (s *DocumentService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error) {
	if s.jobRepo == nil {
		return nil, errors.New("generation job repository not set")
	}
	job, err := s.jobRepo.GetByID(ctx, userID, jobID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// defaultFields fills applicant_name and visa_category from the profile
// when the form leaves them blank
func (s *DocumentService) defaultFields(ctx context.Context, userID uuid.UUID, fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if s.profiles == nil {
		return out
	}
	user, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return out
	}
	if out["applicant_name"] == "" {
		out["applicant_name"] = user.FullName()
	}
	if out["visa_category"] == "" {
		out["visa_category"] = string(user.VisaCategory)
	}
	return out
}

func (s *DocumentService) exhibits(ctx context.Context, userID uuid.UUID) []string {
	if s.files == nil {
		return nil
	}
	files, err := s.files.List(ctx, userID)
	if err != nil {
		s.logger.Warn("could not list exhibits", slog.String("error", err.Error()))
		return nil
	}
	names := make([]string, 0, len(files))
	// oldest first reads naturally as exhibit order
	for i := len(files) - 1; i >= 0; i-- {
		names = append(names, files[i].Filename)
	}
	return names
}
