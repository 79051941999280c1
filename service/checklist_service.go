package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"

	"github.com/google/uuid"
)

// ChecklistService handles document checklists and the profile fields derived from them
type ChecklistService struct {
	checklistRepo *repository.ChecklistRepository
	userRepo      *repository.UserRepository
	cache         *ProfileCache
	logger        *slog.Logger

	// serializes read-modify-write of one user's checklist
	locks sync.Map
}

// ChecklistServiceOption is a functional option for ChecklistService
type ChecklistServiceOption func(*ChecklistService)

// ChecklistWithRepository sets the checklist repository
func ChecklistWithRepository(repo *repository.ChecklistRepository) ChecklistServiceOption {
	return func(s *ChecklistService) {
		s.checklistRepo = repo
	}
}

// ChecklistWithUserRepository sets the user repository
func ChecklistWithUserRepository(repo *repository.UserRepository) ChecklistServiceOption {
	return func(s *ChecklistService) {
		s.userRepo = repo
	}
}

// ChecklistWithProfileCache sets the profile cache to invalidate on recompute
func ChecklistWithProfileCache(cache *ProfileCache) ChecklistServiceOption {
	return func(s *ChecklistService) {
		s.cache = cache
	}
}

// ChecklistWithLogger sets the logger
func ChecklistWithLogger(logger *slog.Logger) ChecklistServiceOption {
	return func(s *ChecklistService) {
		s.logger = logger
	}
}

// NewChecklistService creates a new checklist service
func NewChecklistService(opts ...ChecklistServiceOption) *ChecklistService {
	s := &ChecklistService{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "checklist_service"))
	return s
}

func (s *ChecklistService) lock(userID uuid.UUID) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get returns the user's checklist. A missing checklist is regenerated
// from the user's visa category.
func (s *ChecklistService) Get(ctx context.Context, userID uuid.UUID) (*models.Checklist, error) {
	if s.checklistRepo == nil {
		return nil, errors.New("checklist repository not set")
	}

	checklist, err := s.checklistRepo.Get(ctx, userID)
	if err == nil {
		return checklist, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}

	if s.userRepo == nil {
		return nil, errors.New("user repository not set")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("regenerating missing checklist",
		slog.String("user_id", userID.String()),
		slog.String("visa_category", string(user.VisaCategory)),
	)
	return s.Reset(ctx, userID, user.VisaCategory)
}

// Reset replaces the user's checklist with a fresh one for visa.
// Completion state from the previous checklist is discarded.
func (s *ChecklistService) Reset(ctx context.Context, userID uuid.UUID, visa models.VisaCategory) (*models.Checklist, error) {
	if s.checklistRepo == nil {
		return nil, errors.New("checklist repository not set")
	}

	checklist, err := GenerateChecklist(visa)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(userID)
	defer unlock()

	if err := s.checklistRepo.Put(ctx, userID, checklist); err != nil {
		return nil, err
	}
	return checklist, nil
}

// restore puts back a checklist replaced by Reset
func (s *ChecklistService) restore(ctx context.Context, userID uuid.UUID, checklist *models.Checklist) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.checklistRepo.Put(ctx, userID, checklist)
}

// UpdateItemRequest represents a request to update one checklist item
type UpdateItemRequest struct {
	UserID uuid.UUID
	ItemID string
	Update models.ChecklistItemUpdate
}

// UpdateItemResult represents the result of updating an item
type UpdateItemResult struct {
	Checklist *models.Checklist
	User      *models.User
}

// UpdateItem applies a partial update to one item and recomputes the
// profile's document count and RFE risk
func (s *ChecklistService) UpdateItem(ctx context.Context, req UpdateItemRequest) (*UpdateItemResult, error) {
	if s.userRepo == nil {
		return nil, errors.New("user repository not set")
	}
	if req.Update.Completed == nil && req.Update.FileID == nil {
		return nil, ErrInvalidInput
	}

	// make sure a checklist exists before taking the lock
	if _, err := s.Get(ctx, req.UserID); err != nil {
		return nil, err
	}

	// user record first, then checklist, the same order ProfileService.Update takes them
	unlockUser := s.userRepo.Lock(req.UserID)
	defer unlockUser()
	unlock := s.lock(req.UserID)
	defer unlock()

	checklist, err := s.checklistRepo.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	item := checklist.Item(req.ItemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	if req.Update.Completed != nil {
		item.Completed = *req.Update.Completed
	}
	if req.Update.FileID != nil {
		if *req.Update.FileID == uuid.Nil {
			item.FileID = nil
		} else {
			id := *req.Update.FileID
			item.FileID = &id
		}
	}

	if err := s.checklistRepo.Put(ctx, req.UserID, checklist); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	ApplyProgress(user, checklist)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.cache.Remove(req.UserID)

	return &UpdateItemResult{Checklist: checklist, User: user.Public()}, nil
}

// ApplyProgress sets the profile fields derived from checklist progress
func ApplyProgress(user *models.User, checklist *models.Checklist) {
	completed, requiredDone, requiredTotal := checklist.Progress()
	user.DocumentCount = completed
	user.RFERisk = ComputeRFERisk(requiredDone, requiredTotal)
}
