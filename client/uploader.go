package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"visamate-backend/models"

	"github.com/google/uuid"
)

// UploadState is the client-side outcome of one file
type UploadState int

const (
	UploadPending UploadState = iota
	// UploadPersisted: bytes stored and metadata saved
	UploadPersisted
	// UploadPendingRetry: bytes stored, metadata queued in the outbox
	UploadPendingRetry
	// UploadFailed: see Reason
	UploadFailed
)

func (s UploadState) String() string {
	switch s {
	case UploadPending:
		return "pending"
	case UploadPersisted:
		return "persisted"
	case UploadPendingRetry:
		return "pending_retry"
	case UploadFailed:
		return "failed"
	}
	return "unknown"
}

// DefaultMaxAttempts is how many metadata saves an outbox entry gets
const DefaultMaxAttempts = 5

// UploadRecord is one file in the upload view state
type UploadRecord struct {
	File   models.File
	State  UploadState
	Reason string
}

// LocalFile is a file the user picked for upload
type LocalFile struct {
	Name     string
	Category string
	Data     io.Reader
}

// OutboxEntry is file metadata whose save has not succeeded yet
type OutboxEntry struct {
	File      models.File `json:"file"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error"`
}

// Outbox persists unsaved metadata per user. Every read-modify-write of a
// user's entries runs under mu.
type Outbox struct {
	backend Backend
	mu      sync.Mutex
}

// NewOutbox creates an outbox over backend
func NewOutbox(backend Backend) *Outbox {
	return &Outbox{backend: backend}
}

func outboxKey(userID uuid.UUID) string {
	return keyOutboxPrefix + userID.String()
}

// Entries returns the queued entries for a user
func (o *Outbox) Entries(userID uuid.UUID) ([]OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.entries(userID)
}

// Save replaces a user's queued entries
func (o *Outbox) Save(userID uuid.UUID, entries []OutboxEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.save(userID, entries)
}

// Enqueue adds or replaces the entry for entry.File.ID
func (o *Outbox) Enqueue(userID uuid.UUID, entry OutboxEntry) error {
	return o.Update(userID, func(entries []OutboxEntry) []OutboxEntry {
		for i := range entries {
			if entries[i].File.ID == entry.File.ID {
				entries[i] = entry
				return entries
			}
		}
		return append(entries, entry)
	})
}

// Update replaces a user's entries with fn applied to the current ones,
// atomically with respect to other outbox calls
func (o *Outbox) Update(userID uuid.UUID, fn func([]OutboxEntry) []OutboxEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	entries, err := o.entries(userID)
	if err != nil {
		return err
	}
	return o.save(userID, fn(entries))
}

func (o *Outbox) entries(userID uuid.UUID) ([]OutboxEntry, error) {
	raw, ok, err := o.backend.Get(outboxKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	var entries []OutboxEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode outbox: %w", err)
	}
	return entries, nil
}

func (o *Outbox) save(userID uuid.UUID, entries []OutboxEntry) error {
	if len(entries) == 0 {
		return o.backend.Delete(outboxKey(userID))
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return o.backend.Set(outboxKey(userID), string(data))
}

// Uploader runs the upload flow: store bytes, then save metadata, queueing
// the metadata in the outbox when the save fails
type Uploader struct {
	session *Session
	authed  *AuthedClient
	outbox  *Outbox
	logger  *slog.Logger

	// MaxAttempts bounds metadata saves per file, counting the first one
	MaxAttempts int

	mu      sync.Mutex
	records []UploadRecord
}

// NewUploader creates an uploader
func NewUploader(session *Session, authed *AuthedClient, outbox *Outbox, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		session:     session,
		authed:      authed,
		outbox:      outbox,
		logger:      logger.With(slog.String("component", "uploader")),
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Records returns a copy of the view state, newest first
func (u *Uploader) Records() []UploadRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UploadRecord, len(u.records))
	copy(out, u.records)
	return out
}

// Load replaces the view state with the server's file list plus any
// outbox entries not yet saved
func (u *Uploader) Load(ctx context.Context) error {
	user := u.session.User()
	if user == nil {
		return ErrNeedsSignIn
	}
	files, err := u.authed.ListFiles(ctx)
	if err != nil {
		return err
	}

	records := make([]UploadRecord, 0, len(files))
	seen := make(map[uuid.UUID]bool, len(files))
	for _, f := range files {
		records = append(records, UploadRecord{File: f, State: UploadPersisted})
		seen[f.ID] = true
	}

	entries, err := u.outbox.Entries(user.ID)
	if err != nil {
		u.logger.Warn("failed to read outbox", slog.String("error", err.Error()))
	}
	for _, e := range entries {
		if !seen[e.File.ID] {
			records = append(records, u.outboxRecord(e))
		}
	}

	u.mu.Lock()
	u.records = records
	u.mu.Unlock()
	return nil
}

func (u *Uploader) outboxRecord(e OutboxEntry) UploadRecord {
	if e.Attempts >= u.MaxAttempts {
		return UploadRecord{File: e.File, State: UploadFailed, Reason: e.LastError}
	}
	return UploadRecord{File: e.File, State: UploadPendingRetry, Reason: e.LastError}
}

func (u *Uploader) put(rec UploadRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := range u.records {
		if u.records[i].File.ID == rec.File.ID {
			u.records[i] = rec
			return
		}
	}
	u.records = append([]UploadRecord{rec}, u.records...)
}

// Upload processes files one at a time and returns their final records
func (u *Uploader) Upload(ctx context.Context, files []LocalFile) ([]UploadRecord, error) {
	user := u.session.User()
	if user == nil {
		return nil, ErrNeedsSignIn
	}

	results := make([]UploadRecord, 0, len(files))
	for _, lf := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, u.uploadOne(ctx, user.ID, lf))
	}
	return results, nil
}

func (u *Uploader) uploadOne(ctx context.Context, userID uuid.UUID, lf LocalFile) UploadRecord {
	rec := UploadRecord{
		File: models.File{
			ID:         uuid.New(),
			UserID:     userID,
			Filename:   lf.Name,
			Category:   lf.Category,
			Status:     models.FileStatusPending,
			UploadedAt: time.Now().UTC(),
		},
		State: UploadPending,
	}
	u.put(rec)

	obj, err := u.authed.UploadFile(ctx, lf.Name, lf.Data)
	if err != nil {
		rec.File.Status = models.FileStatusFailed
		rec.State = UploadFailed
		rec.Reason = FriendlyMessage(err)
		u.put(rec)
		return rec
	}

	rec.File.StoragePath = obj.Path
	rec.File.URL = obj.URL
	rec.File.MimeType = obj.MimeType
	rec.File.Size = obj.Size
	rec.File.Pages = obj.Pages
	// bytes are stored, so the file shows as processed even while its
	// metadata waits in the outbox
	rec.File.Status = models.FileStatusProcessed

	saved, err := u.authed.RecordFile(ctx, rec.File)
	if err != nil {
		u.logger.Warn("metadata save failed, queued for retry",
			slog.String("file_id", rec.File.ID.String()),
			slog.String("error", err.Error()),
		)
		rec = u.queue(userID, OutboxEntry{File: rec.File, Attempts: 1, LastError: err.Error()})
		u.put(rec)
		return rec
	}

	rec.File = *saved
	rec.State = UploadPersisted
	u.put(rec)
	return rec
}

func (u *Uploader) queue(userID uuid.UUID, entry OutboxEntry) UploadRecord {
	if err := u.outbox.Enqueue(userID, entry); err != nil {
		u.logger.Error("failed to persist outbox entry",
			slog.String("file_id", entry.File.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return u.outboxRecord(entry)
}

// FlushOutbox retries queued metadata saves for the signed-in user.
// Entries that succeed leave the outbox. Entries that reach MaxAttempts
// stay queued as Failed until removed with Delete. A rejected session
// stops the flush without counting an attempt against the entries.
func (u *Uploader) FlushOutbox(ctx context.Context) ([]UploadRecord, error) {
	user := u.session.User()
	if user == nil {
		return nil, ErrNeedsSignIn
	}

	entries, err := u.outbox.Entries(user.ID)
	if err != nil {
		return nil, err
	}

	saved := make(map[uuid.UUID]bool)
	retried := make(map[uuid.UUID]OutboxEntry)
	results := make([]UploadRecord, 0, len(entries))
	var stopErr error
	for _, e := range entries {
		if stopErr != nil || e.Attempts >= u.MaxAttempts || ctx.Err() != nil {
			results = append(results, u.outboxRecord(e))
			continue
		}

		file, err := u.authed.RecordFile(ctx, e.File)
		if IsUnauthorized(err) || errors.Is(err, ErrNeedsSignIn) {
			stopErr = err
			results = append(results, u.outboxRecord(e))
			continue
		}
		if err != nil {
			e.Attempts++
			e.LastError = err.Error()
			retried[e.File.ID] = e
			rec := u.outboxRecord(e)
			u.put(rec)
			results = append(results, rec)
			continue
		}

		saved[e.File.ID] = true
		rec := UploadRecord{File: *file, State: UploadPersisted}
		u.put(rec)
		results = append(results, rec)
	}

	// merge into the current entries so files queued meanwhile are kept
	err = u.outbox.Update(user.ID, func(current []OutboxEntry) []OutboxEntry {
		kept := current[:0]
		for _, e := range current {
			if saved[e.File.ID] {
				continue
			}
			if r, ok := retried[e.File.ID]; ok {
				e = r
			}
			kept = append(kept, e)
		}
		return kept
	})
	if err != nil {
		return results, err
	}
	if stopErr != nil {
		return results, stopErr
	}
	return results, ctx.Err()
}

// Delete removes a file on the server and then from the view state. For a
// file still queued in the outbox the server may or may not hold its
// record, so the record is deleted if present and otherwise the
// unrecorded object is discarded. The entry leaves the outbox only after
// the server side is clean.
func (u *Uploader) Delete(ctx context.Context, id uuid.UUID) error {
	user := u.session.User()
	if user == nil {
		return ErrNeedsSignIn
	}

	entries, err := u.outbox.Entries(user.ID)
	if err != nil {
		return err
	}
	var queued *OutboxEntry
	for i := range entries {
		if entries[i].File.ID == id {
			queued = &entries[i]
			break
		}
	}

	if queued == nil {
		if err := u.authed.DeleteFile(ctx, id); err != nil {
			return err
		}
	} else {
		if err := u.discardQueued(ctx, *queued); err != nil {
			return err
		}
		err := u.outbox.Update(user.ID, func(current []OutboxEntry) []OutboxEntry {
			kept := current[:0]
			for _, e := range current {
				if e.File.ID != id {
					kept = append(kept, e)
				}
			}
			return kept
		})
		if err != nil {
			return err
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	for i := range u.records {
		if u.records[i].File.ID == id {
			u.records = append(u.records[:i], u.records[i+1:]...)
			break
		}
	}
	return nil
}

func (u *Uploader) discardQueued(ctx context.Context, e OutboxEntry) error {
	err := u.authed.DeleteFile(ctx, e.File.ID)
	if err == nil {
		// an earlier save had reached the server; the object went with it
		return nil
	}
	if !IsNotFound(err) {
		return err
	}
	if e.File.StoragePath == "" {
		return nil
	}
	if err := u.authed.DiscardUpload(ctx, e.File.StoragePath); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}
