package client

import (
	"path/filepath"
	"testing"

	"visamate-backend/models"

	"github.com/google/uuid"
)

func TestTokenStore_Backends(t *testing.T) {
	fileBackend, err := NewFileBackend(filepath.Join(t.TempDir(), "state", "session.json"))
	if err != nil {
		t.Fatal(err)
	}
	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   fileBackend,
	}

	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			store := NewTokenStore(b)

			if tok, err := store.AccessToken(); err != nil || tok != "" {
				t.Fatalf("empty store returned %q, %v", tok, err)
			}
			if u, err := store.User(); err != nil || u != nil {
				t.Fatalf("empty store user = %v, %v", u, err)
			}

			if err := store.SetSession(models.Session{AccessToken: "a", RefreshToken: "r"}); err != nil {
				t.Fatal(err)
			}
			user := &models.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "secret"}
			if err := store.SetUser(user); err != nil {
				t.Fatal(err)
			}

			if tok, _ := store.AccessToken(); tok != "a" {
				t.Errorf("access = %q", tok)
			}
			if tok, _ := store.RefreshToken(); tok != "r" {
				t.Errorf("refresh = %q", tok)
			}
			cached, err := store.User()
			if err != nil || cached.ID != user.ID {
				t.Fatalf("cached = %+v, %v", cached, err)
			}
			if cached.PasswordHash != "" {
				t.Error("password hash persisted")
			}

			if err := store.Clear(); err != nil {
				t.Fatal(err)
			}
			for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
				if _, ok, _ := b.Get(k); ok {
					t.Errorf("%s survived Clear", k)
				}
			}
		})
	}
}

func TestTokenStore_RejectsEmptyAccessToken(t *testing.T) {
	store := NewTokenStore(NewMemoryBackend())
	if err := store.SetSession(models.Session{RefreshToken: "r"}); err == nil {
		t.Fatal("expected error")
	}
	if tok, _ := store.RefreshToken(); tok != "" {
		t.Error("refresh token stored without an access token")
	}
}

func TestFileBackend_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	first, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set(KeyAccessToken, "persisted"); err != nil {
		t.Fatal(err)
	}

	second, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := second.Get(KeyAccessToken)
	if err != nil || !ok || v != "persisted" {
		t.Errorf("Get = %q %v %v", v, ok, err)
	}
}
