// Package servertest wires the full router over in-memory backends for tests.
package servertest

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"visamate-backend/auth"
	"visamate-backend/kv"
	"visamate-backend/repository"
	"visamate-backend/server"
	"visamate-backend/service"
	"visamate-backend/storage"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	APIKey    = "public-test-key"
	JWTSecret = "0123456789abcdef0123456789abcdef"
	// MaxUploadSize keeps oversized-upload tests cheap
	MaxUploadSize = 4096
)

// NewDeps builds router dependencies over a fresh memory store and a
// temporary local storage directory
func NewDeps(t testing.TB) server.Deps {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	fileStorage, err := storage.NewLocalStorage(dir, "http://files.test")
	if err != nil {
		t.Fatal(err)
	}

	users := repository.NewUserRepository(store)
	cache := service.NewProfileCache(16, time.Minute)
	timeline := service.NewTimelineService(repository.NewTimelineRepository(store))
	checklist := service.NewChecklistService(
		service.ChecklistWithRepository(repository.NewChecklistRepository(store)),
		service.ChecklistWithUserRepository(users),
		service.ChecklistWithProfileCache(cache),
		service.ChecklistWithLogger(logger),
	)
	profiles := service.NewProfileService(
		service.ProfileWithUserRepository(users),
		service.ProfileWithChecklistService(checklist),
		service.ProfileWithTimelineService(timeline),
		service.ProfileWithCache(cache),
		service.ProfileWithLogger(logger),
	)
	authService := service.NewAuthService(
		service.AuthWithUserRepository(users),
		service.AuthWithTokenRepository(repository.NewTokenRepository(store)),
		service.AuthWithChecklistService(checklist),
		service.AuthWithTimelineService(timeline),
		service.AuthWithTokenIssuer(auth.NewTokenIssuer(JWTSecret, "visamate", time.Hour)),
		service.AuthWithLogger(logger),
	)
	files := service.NewFileService(
		service.FileWithRepository(repository.NewFileRepository(store)),
		service.FileWithStorage(fileStorage),
		service.FileWithTimelineService(timeline),
		service.FileWithMaxSize(MaxUploadSize),
		service.FileWithLogger(logger),
	)
	documents := service.NewDocumentService(
		service.DocumentWithGenerationJobRepository(repository.NewGenerationJobRepository(store)),
		service.DocumentWithProfileService(profiles),
		service.DocumentWithFileService(files),
		service.DocumentWithLogger(logger),
	)

	return server.Deps{
		Store:         store,
		Auth:          authService,
		Profiles:      profiles,
		Timeline:      timeline,
		Checklist:     checklist,
		Files:         files,
		Documents:     documents,
		Registry:      prometheus.NewRegistry(),
		LocalFilesDir: dir,
		APIPrefix:     "/api",
		PublicAPIKey:  APIKey,
		CORSOrigins:   []string{"*"},
		Version:       "test",
		Logger:        logger,
	}
}

// NewServer starts an httptest server running the full router. The API
// lives under URL + "/api".
func NewServer(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.NewRouter(NewDeps(t)))
	t.Cleanup(srv.Close)
	return srv
}
