// Package kv is the key-value layer the backend uses in place of relational
// tables. Values are opaque JSON documents addressed by colon-separated keys
// such as "user:<id>" or "timeline:<id>:<seq>".
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.New("kv: key not found")
	// ErrExists is returned by PutIfAbsent when the key is already taken
	ErrExists = errors.New("kv: key already exists")
	// ErrInvalidKey is returned for empty keys or unsupported list prefixes
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Item is a key with its raw value
type Item struct {
	Key   string
	Value []byte
}

// Store is implemented by every backend. Implementations must be safe for
// concurrent use. List returns items ordered by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	PutIfAbsent(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Item, error)
	Ping(ctx context.Context) error
	Close() error
}

// Key joins segments with ':'
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// GetJSON loads key and decodes it into a new T
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// PutJSON encodes v and stores it under key
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}

// PutJSONIfAbsent encodes v and stores it only when key is free
func PutJSONIfAbsent(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.PutIfAbsent(ctx, key, raw)
}

// ListJSON decodes every value under prefix
func ListJSON[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	items, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		var v T
		if err := json.Unmarshal(it.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func checkKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
