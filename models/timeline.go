package models

import "time"

// TimelineEntryType classifies timeline events
type TimelineEntryType string

const (
	TimelineAccount  TimelineEntryType = "account"
	TimelineVisa     TimelineEntryType = "visa"
	TimelineDocument TimelineEntryType = "document"
	TimelineNote     TimelineEntryType = "note"
)

// TimelineEntry is an append-only record in a user's case log.
// IDs are assigned by the repository and strictly increase per user.
type TimelineEntry struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	Type        TimelineEntryType `json:"type"`
	Status      string            `json:"status"`
}
