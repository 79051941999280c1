package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"visamate-backend/models"
)

// Persisted key names
const (
	KeyAccessToken  = "visamate.accessToken"
	KeyRefreshToken = "visamate.refreshToken"
	KeyUser         = "visamate.user"
	keyOutboxPrefix = "visamate.outbox."
)

// Backend is a small persistent string map
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// MemoryBackend keeps values for the life of the process
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// FileBackend stores the map as a JSON object in a single file.
// Writes go through a temp file and rename.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend uses path, creating its directory when needed
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return values, nil
}

func (f *FileBackend) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".visamate-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileBackend) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileBackend) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileBackend) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	return f.save(values)
}

// TokenStore persists the session tokens and the cached user
type TokenStore struct {
	backend Backend
}

// NewTokenStore wraps a backend
func NewTokenStore(backend Backend) *TokenStore {
	return &TokenStore{backend: backend}
}

// AccessToken returns the stored access token, or "" when signed out
func (s *TokenStore) AccessToken() (string, error) {
	v, _, err := s.backend.Get(KeyAccessToken)
	return v, err
}

// RefreshToken returns the stored refresh token
func (s *TokenStore) RefreshToken() (string, error) {
	v, _, err := s.backend.Get(KeyRefreshToken)
	return v, err
}

// SetSession stores both tokens
func (s *TokenStore) SetSession(session models.Session) error {
	if session.AccessToken == "" {
		return errors.New("empty access token")
	}
	if err := s.backend.Set(KeyAccessToken, session.AccessToken); err != nil {
		return err
	}
	return s.backend.Set(KeyRefreshToken, session.RefreshToken)
}

// User returns the cached user, or nil
func (s *TokenStore) User() (*models.User, error) {
	raw, ok, err := s.backend.Get(KeyUser)
	if err != nil || !ok {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &u, nil
}

// SetUser caches the user record
func (s *TokenStore) SetUser(u *models.User) error {
	data, err := json.Marshal(u.Public())
	if err != nil {
		return err
	}
	return s.backend.Set(KeyUser, string(data))
}

// Clear removes both tokens and the cached user
func (s *TokenStore) Clear() error {
	return s.backend.Delete(KeyAccessToken, KeyRefreshToken, KeyUser)
}
