package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"visamate-backend/models"
	"visamate-backend/repository"

	"github.com/google/uuid"
)

// TimelineService handles the user's case timeline
type TimelineService struct {
	timelineRepo *repository.TimelineRepository
}

// NewTimelineService creates a new timeline service
func NewTimelineService(repo *repository.TimelineRepository) *TimelineService {
	return &TimelineService{timelineRepo: repo}
}

// AppendTimelineRequest represents a request to append a timeline entry
type AppendTimelineRequest struct {
	UserID      uuid.UUID
	Title       string
	Description string
	Type        models.TimelineEntryType
	Status      string
}

// List returns the user's timeline in creation order
func (s *TimelineService) List(ctx context.Context, userID uuid.UUID) ([]models.TimelineEntry, error) {
	if s.timelineRepo == nil {
		return nil, errors.New("timeline repository not set")
	}
	entries, err := s.timelineRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.TimelineEntry{}
	}
	return entries, nil
}

// Append adds an entry to the end of the user's timeline
func (s *TimelineService) Append(ctx context.Context, req AppendTimelineRequest) (*models.TimelineEntry, error) {
	if s.timelineRepo == nil {
		return nil, errors.New("timeline repository not set")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	entry := &models.TimelineEntry{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Type:        req.Type,
		Status:      req.Status,
	}
	if entry.Type == "" {
		entry.Type = models.TimelineNote
	}
	if entry.Status == "" {
		entry.Status = "completed"
	}

	if err := s.timelineRepo.Append(ctx, req.UserID, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
