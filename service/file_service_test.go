package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"visamate-backend/models"

	"github.com/google/uuid"
)

func TestFileService_UploadRecordListDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)

	obj, err := env.files.Upload(ctx, UploadRequest{
		UserID:      user.ID,
		Filename:    "cv.txt",
		ContentType: "text/plain; charset=utf-8",
		Data:        strings.NewReader("curriculum vitae"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(obj.Path, user.ID.String()+"/") {
		t.Errorf("path %q not namespaced", obj.Path)
	}
	if obj.URL != "http://files.test/"+obj.Path {
		t.Errorf("URL = %q", obj.URL)
	}
	if obj.Size != int64(len("curriculum vitae")) || obj.MimeType != "text/plain" {
		t.Errorf("obj = %+v", obj)
	}

	fileID := uuid.New()
	record := models.File{
		ID:          fileID,
		Filename:    obj.Filename,
		MimeType:    obj.MimeType,
		Size:        obj.Size,
		Category:    "cv",
		StoragePath: obj.Path,
		URL:         obj.URL,
	}
	saved, err := env.files.Record(ctx, RecordRequest{UserID: user.ID, File: record})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if saved.Status != models.FileStatusProcessed || saved.UserID != user.ID {
		t.Errorf("saved = %+v", saved)
	}

	// retried save with the same id must not duplicate
	if _, err := env.files.Record(ctx, RecordRequest{UserID: user.ID, File: record}); err != nil {
		t.Fatalf("second Record: %v", err)
	}
	files, err := env.files.List(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].ID != fileID {
		t.Fatalf("files = %+v", files)
	}

	entries, _ := env.timeline.List(ctx, user.ID)
	uploads := 0
	for _, e := range entries {
		if e.Type == models.TimelineDocument {
			uploads++
		}
	}
	if uploads != 1 {
		t.Errorf("%d upload timeline entries, want 1", uploads)
	}

	if err := env.files.Delete(ctx, user.ID, fileID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	files, _ = env.files.List(ctx, user.ID)
	if len(files) != 0 {
		t.Errorf("files after delete = %+v", files)
	}
	if err := env.files.Delete(ctx, user.ID, fileID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second Delete: got %v", err)
	}
}

func TestFileService_UploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.files.Upload(ctx, UploadRequest{
		UserID:   userID,
		Filename: "big.txt",
		Data:     strings.NewReader(strings.Repeat("x", 2048)),
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("too large: got %v", err)
	}

	_, err = env.files.Upload(ctx, UploadRequest{
		UserID:   userID,
		Filename: "tool.exe",
		Data:     strings.NewReader("MZ"),
	})
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("exe: got %v", err)
	}

	_, err = env.files.Upload(ctx, UploadRequest{UserID: userID, Data: strings.NewReader("x")})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("no filename: got %v", err)
	}
}

func TestFileService_RecordRejectsForeignPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.files.Record(ctx, RecordRequest{
		UserID: uuid.New(),
		File: models.File{
			Filename:    "cv.pdf",
			StoragePath: uuid.New().String() + "/x_cv.pdf",
		},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestFileService_RecordRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	victim := env.signUp(t, "victim@example.com", models.VisaEB1A)
	attacker := env.signUp(t, "attacker@example.com", models.VisaO1A)

	obj, err := env.files.Upload(ctx, UploadRequest{
		UserID:   victim.ID,
		Filename: "cv.txt",
		Data:     strings.NewReader("secret"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	own := attacker.ID.String() + "/"
	paths := []string{
		own + "../" + obj.Path,
		own + "./x_cv.txt",
		own + "a/../../" + obj.Path,
		own + "/x_cv.txt",
		own,
		own + "..\\" + obj.Path,
		"/" + own + "x_cv.txt",
	}
	for _, p := range paths {
		_, err := env.files.Record(ctx, RecordRequest{
			UserID: attacker.ID,
			File:   models.File{ID: uuid.New(), Filename: "cv.txt", StoragePath: p},
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Record(%q) = %v, want ErrInvalidInput", p, err)
		}
	}

	files, _ := env.files.List(ctx, attacker.ID)
	if len(files) != 0 {
		t.Fatalf("attacker recorded %d files", len(files))
	}

	// the victim's object is untouched
	fileID := uuid.New()
	if _, err := env.files.Record(ctx, RecordRequest{
		UserID: victim.ID,
		File:   models.File{ID: fileID, Filename: "cv.txt", StoragePath: obj.Path},
	}); err != nil {
		t.Fatalf("victim Record: %v", err)
	}
	_, rc, err := env.files.Open(ctx, victim.ID, fileID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "secret" {
		t.Errorf("victim object = %q", body)
	}
}

func TestFileService_Discard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "grace@example.com", models.VisaEB1A)
	other := env.signUp(t, "kat@example.com", models.VisaEB1A)

	upload := func(name string) *models.StoredObject {
		t.Helper()
		obj, err := env.files.Upload(ctx, UploadRequest{UserID: user.ID, Filename: name, Data: strings.NewReader("bytes")})
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		return obj
	}

	orphan := upload("orphan.txt")
	if err := env.files.Discard(ctx, other.ID, orphan.Path); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("foreign Discard = %v, want ErrInvalidInput", err)
	}
	if err := env.files.Discard(ctx, user.ID, orphan.Path); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := env.files.storage.Download(ctx, orphan.Path); err == nil {
		t.Error("object still stored after Discard")
	}
	// discarding twice is harmless
	if err := env.files.Discard(ctx, user.ID, orphan.Path); err != nil {
		t.Errorf("second Discard: %v", err)
	}

	recorded := upload("kept.txt")
	if _, err := env.files.Record(ctx, RecordRequest{
		UserID: user.ID,
		File:   models.File{ID: uuid.New(), Filename: "kept.txt", StoragePath: recorded.Path},
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := env.files.Discard(ctx, user.ID, recorded.Path); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Discard of recorded object = %v, want ErrInvalidInput", err)
	}
	if _, err := env.files.storage.Download(ctx, recorded.Path); err != nil {
		t.Errorf("recorded object removed: %v", err)
	}
}
