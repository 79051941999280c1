package kv

import (
	"context"
	"errors"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// runStoreSuite exercises the behaviour every backend must share
func runStoreSuite(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := s.Get(ctx, "user:missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		if err := PutJSON(ctx, s, "user:1", doc{Name: "ada", Count: 1}); err != nil {
			t.Fatalf("PutJSON: %v", err)
		}
		got, err := GetJSON[doc](ctx, s, "user:1")
		if err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
		if got.Name != "ada" || got.Count != 1 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		if err := PutJSON(ctx, s, "user:1", doc{Name: "ada", Count: 2}); err != nil {
			t.Fatalf("PutJSON: %v", err)
		}
		got, err := GetJSON[doc](ctx, s, "user:1")
		if err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
		if got.Count != 2 {
			t.Errorf("Count = %d, want 2", got.Count)
		}
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		if err := PutJSONIfAbsent(ctx, s, "email:ada@example.com", doc{Name: "first"}); err != nil {
			t.Fatalf("first PutIfAbsent: %v", err)
		}
		err := PutJSONIfAbsent(ctx, s, "email:ada@example.com", doc{Name: "second"})
		if !errors.Is(err, ErrExists) {
			t.Fatalf("second PutIfAbsent: err = %v, want ErrExists", err)
		}
		got, _ := GetJSON[doc](ctx, s, "email:ada@example.com")
		if got == nil || got.Name != "first" {
			t.Errorf("value was overwritten: %+v", got)
		}
	})

	t.Run("ListByPrefixOrdered", func(t *testing.T) {
		keys := []string{"timeline:u1:000003", "timeline:u1:000001", "timeline:u1:000002", "timeline:u2:000001"}
		for i, k := range keys {
			if err := PutJSON(ctx, s, k, doc{Count: i}); err != nil {
				t.Fatalf("PutJSON %s: %v", k, err)
			}
		}
		items, err := s.List(ctx, "timeline:u1:")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		want := []string{"timeline:u1:000001", "timeline:u1:000002", "timeline:u1:000003"}
		if len(items) != len(want) {
			t.Fatalf("List returned %d items, want %d", len(items), len(want))
		}
		for i, it := range items {
			if it.Key != want[i] {
				t.Errorf("items[%d].Key = %q, want %q", i, it.Key, want[i])
			}
		}
	})

	t.Run("ListEmpty", func(t *testing.T) {
		items, err := s.List(ctx, "file:nobody:")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %d", len(items))
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		if err := s.Delete(ctx, "user:1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, "user:1"); err != nil {
			t.Fatalf("second Delete: %v", err)
		}
		if _, err := s.Get(ctx, "user:1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after delete: err = %v", err)
		}
	})

	t.Run("EmptyKeyRejected", func(t *testing.T) {
		if err := s.Put(ctx, "", []byte(`{}`)); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put empty key: err = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
