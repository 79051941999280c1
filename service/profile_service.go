package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"

	"github.com/google/uuid"
)

// ProfileService handles reading and updating user profiles
type ProfileService struct {
	userRepo  *repository.UserRepository
	checklist *ChecklistService
	timeline  *TimelineService
	cache     *ProfileCache
	logger    *slog.Logger
}

// ProfileServiceOption is a functional option for ProfileService
type ProfileServiceOption func(*ProfileService)

// ProfileWithUserRepository sets the user repository
func ProfileWithUserRepository(repo *repository.UserRepository) ProfileServiceOption {
	return func(s *ProfileService) {
		s.userRepo = repo
	}
}

// ProfileWithChecklistService sets the checklist service used on visa changes
func ProfileWithChecklistService(cs *ChecklistService) ProfileServiceOption {
	return func(s *ProfileService) {
		s.checklist = cs
	}
}

// ProfileWithTimelineService sets the timeline service used on visa changes
func ProfileWithTimelineService(ts *TimelineService) ProfileServiceOption {
	return func(s *ProfileService) {
		s.timeline = ts
	}
}

// ProfileWithCache sets the read-through profile cache
func ProfileWithCache(cache *ProfileCache) ProfileServiceOption {
	return func(s *ProfileService) {
		s.cache = cache
	}
}

// ProfileWithLogger sets the logger
func ProfileWithLogger(logger *slog.Logger) ProfileServiceOption {
	return func(s *ProfileService) {
		s.logger = logger
	}
}

// NewProfileService creates a new profile service
func NewProfileService(opts ...ProfileServiceOption) *ProfileService {
	s := &ProfileService{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "profile_service"))
	return s
}

// Get returns the user's public profile
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if s.userRepo == nil {
		return nil, errors.New("user repository not set")
	}

	if u, ok := s.cache.Get(userID); ok {
		return u.Public(), nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	s.cache.Add(user)
	return user.Public(), nil
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	UserID uuid.UUID
	Update models.ProfileUpdate
}

// Update applies a partial update. Changing the visa category regenerates
// the checklist, resets derived fields and appends a timeline entry.
func (s *ProfileService) Update(ctx context.Context, req UpdateProfileRequest) (*models.User, error) {
	if s.userRepo == nil {
		return nil, errors.New("user repository not set")
	}
	if req.Update.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	unlock := s.userRepo.Lock(req.UserID)
	defer unlock()

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u := req.Update
	if u.FirstName != nil {
		user.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		user.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.CaseStatus != nil {
		status := strings.TrimSpace(*u.CaseStatus)
		if status == "" {
			return nil, fmt.Errorf("%w: case_status cannot be empty", ErrInvalidInput)
		}
		user.CaseStatus = status
	}

	previousVisa := user.VisaCategory
	visaChanged := false
	if u.VisaCategory != nil {
		visa, ok := models.ParseVisaCategory(string(*u.VisaCategory))
		if !ok {
			return nil, ErrInvalidVisaCategory
		}
		visaChanged = visa != user.VisaCategory
		user.VisaCategory = visa
	}

	var previous *models.Checklist
	if visaChanged {
		if s.checklist == nil {
			return nil, errors.New("checklist service not set")
		}
		previous, err = s.checklist.Get(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		checklist, err := s.checklist.Reset(ctx, user.ID, user.VisaCategory)
		if err != nil {
			return nil, fmt.Errorf("regenerate checklist: %w", err)
		}
		ApplyProgress(user, checklist)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if previous != nil {
			// the checklist must keep matching the stored visa category
			if rerr := s.checklist.restore(ctx, user.ID, previous); rerr != nil {
				s.logger.Error("failed to restore checklist after profile write failed",
					slog.String("user_id", user.ID.String()),
					slog.String("error", rerr.Error()),
				)
			}
		}
		return nil, err
	}
	s.cache.Remove(user.ID)

	if visaChanged && s.timeline != nil {
		_, err := s.timeline.Append(ctx, AppendTimelineRequest{
			UserID:      user.ID,
			Title:       "Visa Category Updated",
			Description: fmt.Sprintf("Changed from %s to %s", previousVisa, user.VisaCategory),
			Type:        models.TimelineVisa,
		})
		if err != nil {
			// the profile change already committed
			s.logger.Warn("failed to append visa change to timeline",
				slog.String("user_id", user.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return user.Public(), nil
}
