package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"visamate-backend/models"
)

// DashboardData is what the dashboard renders. TimelineErr and
// ChecklistErr record sections that failed to load and were left empty.
type DashboardData struct {
	Timeline     []models.TimelineEntry
	Checklist    []models.ChecklistCategory
	TimelineErr  error
	ChecklistErr error
}

// Dashboard loads and mutates the dashboard view state
type Dashboard struct {
	session *Session
	public  *PublicClient
	authed  *AuthedClient
	logger  *slog.Logger

	mu   sync.Mutex
	data DashboardData
}

// NewDashboard creates a loader bound to a session
func NewDashboard(session *Session, public *PublicClient, authed *AuthedClient, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		session: session,
		public:  public,
		authed:  authed,
		logger:  logger.With(slog.String("component", "dashboard")),
	}
}

// Load fetches health, then timeline, then checklist. A failed health
// check aborts with ErrServerUnreachable before anything else is
// requested. Timeline and checklist failures leave that section empty.
func (d *Dashboard) Load(ctx context.Context) (DashboardData, error) {
	if !d.session.State().IsAuthenticated() {
		return DashboardData{}, ErrNeedsSignIn
	}

	if err := d.public.Health(ctx); err != nil {
		d.logger.Warn("health check failed", slog.String("error", err.Error()))
		return DashboardData{}, fmt.Errorf("%w: %w", ErrServerUnreachable, err)
	}

	data := DashboardData{
		Timeline:  []models.TimelineEntry{},
		Checklist: []models.ChecklistCategory{},
	}

	timeline, err := d.authed.Timeline(ctx)
	if err != nil {
		d.logger.Warn("timeline load failed", slog.String("error", err.Error()))
		data.TimelineErr = err
	} else if timeline != nil {
		data.Timeline = timeline
	}

	checklist, err := d.authed.Checklist(ctx)
	if err != nil {
		d.logger.Warn("checklist load failed", slog.String("error", err.Error()))
		data.ChecklistErr = err
	} else if checklist.Categories != nil {
		data.Checklist = checklist.Categories
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()
	return data, nil
}

// Data returns the last loaded view state
func (d *Dashboard) Data() DashboardData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}

// ToggleItem marks a checklist item. On success the whole checklist is
// replaced with the server's copy and the user profile is refreshed. On
// failure local state is untouched.
func (d *Dashboard) ToggleItem(ctx context.Context, itemID string, completed bool) error {
	if !d.session.State().IsAuthenticated() {
		return ErrNeedsSignIn
	}

	res, err := d.authed.UpdateChecklistItem(ctx, itemID, models.ChecklistItemUpdate{Completed: &completed})
	if err != nil {
		return err
	}

	categories := res.Checklist.Categories
	if categories == nil {
		categories = []models.ChecklistCategory{}
	}
	d.mu.Lock()
	d.data.Checklist = categories
	d.mu.Unlock()

	if err := d.session.RefreshUser(ctx); err != nil {
		d.logger.Warn("profile refresh after toggle failed", slog.String("error", err.Error()))
	}
	return nil
}
