package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"visamate-backend/auth"
	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"
	"visamate-backend/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	store     *kv.MemoryStore
	users     *repository.UserRepository
	cache     *ProfileCache
	auth      *AuthService
	profiles  *ProfileService
	timeline  *TimelineService
	checklist *ChecklistService
	files     *FileService
	docs      *DocumentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := discardLogger()

	fileStorage, err := storage.NewLocalStorage(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		store: store,
		users: repository.NewUserRepository(store),
		cache: NewProfileCache(16, time.Minute),
	}
	env.timeline = NewTimelineService(repository.NewTimelineRepository(store))
	env.checklist = NewChecklistService(
		ChecklistWithRepository(repository.NewChecklistRepository(store)),
		ChecklistWithUserRepository(env.users),
		ChecklistWithProfileCache(env.cache),
		ChecklistWithLogger(logger),
	)
	env.profiles = NewProfileService(
		ProfileWithUserRepository(env.users),
		ProfileWithChecklistService(env.checklist),
		ProfileWithTimelineService(env.timeline),
		ProfileWithCache(env.cache),
		ProfileWithLogger(logger),
	)
	env.auth = NewAuthService(
		AuthWithUserRepository(env.users),
		AuthWithTokenRepository(repository.NewTokenRepository(store)),
		AuthWithChecklistService(env.checklist),
		AuthWithTimelineService(env.timeline),
		AuthWithTokenIssuer(auth.NewTokenIssuer(testSecret, "visamate", time.Hour)),
		AuthWithLogger(logger),
	)
	env.files = NewFileService(
		FileWithRepository(repository.NewFileRepository(store)),
		FileWithStorage(fileStorage),
		FileWithTimelineService(env.timeline),
		FileWithMaxSize(1024),
		FileWithLogger(logger),
	)
	env.docs = NewDocumentService(
		DocumentWithGenerationJobRepository(repository.NewGenerationJobRepository(store)),
		DocumentWithProfileService(env.profiles),
		DocumentWithFileService(env.files),
		DocumentWithLogger(logger),
	)
	return env
}

func (e *testEnv) signUp(t *testing.T, email string, visa models.VisaCategory) *models.User {
	t.Helper()
	res, err := e.auth.SignUp(context.Background(), SignUpRequest{
		Email:        email,
		Password:     "password123",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		VisaCategory: string(visa),
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return res.User
}
