package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visamate-backend/kv"
	"visamate-backend/models"

	"github.com/google/uuid"
)

// maxAppendAttempts bounds retries when concurrent appends race for a sequence id
const maxAppendAttempts = 5

// TimelineRepository handles the append-only timeline log
type TimelineRepository struct {
	store kv.Store
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(store kv.Store) *TimelineRepository {
	return &TimelineRepository{store: store}
}

func timelinePrefix(userID uuid.UUID) string {
	return kv.Key("timeline", userID.String()) + ":"
}

// sequence ids are zero-padded so lexical key order equals numeric order
func timelineKey(userID uuid.UUID, seq int64) string {
	return timelinePrefix(userID) + fmt.Sprintf("%012d", seq)
}

// Append assigns the next sequence id and stores the entry. Entries are never
// overwritten: a lost race on an id retries with the following one.
func (r *TimelineRepository) Append(ctx context.Context, userID uuid.UUID, entry *models.TimelineEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	entries, err := r.ListByUserID(ctx, userID)
	if err != nil {
		return err
	}
	next := int64(1)
	if n := len(entries); n > 0 {
		next = entries[n-1].ID + 1
		// keep timestamps monotonic with ids
		if last := entries[n-1].Timestamp; entry.Timestamp.Before(last) {
			entry.Timestamp = last
		}
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		entry.ID = next
		err := kv.PutJSONIfAbsent(ctx, r.store, timelineKey(userID, next), entry)
		if err == nil {
			return nil
		}
		if !errors.Is(err, kv.ErrExists) {
			return err
		}
		next++
	}
	return fmt.Errorf("timeline append: gave up after %d attempts", maxAppendAttempts)
}

// ListByUserID retrieves all entries in creation order
func (r *TimelineRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.TimelineEntry, error) {
	return kv.ListJSON[models.TimelineEntry](ctx, r.store, timelinePrefix(userID))
}
