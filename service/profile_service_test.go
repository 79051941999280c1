package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"

	"github.com/google/uuid"
)

func TestProfileService_VisaChangeRegeneratesChecklist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)

	done := true
	if _, err := env.checklist.UpdateItem(ctx, UpdateItemRequest{
		UserID: user.ID,
		ItemID: "evidence-awards",
		Update: models.ChecklistItemUpdate{Completed: &done},
	}); err != nil {
		t.Fatal(err)
	}

	visa := models.VisaCategory("o1a")
	updated, err := env.profiles.Update(ctx, UpdateProfileRequest{
		UserID: user.ID,
		Update: models.ProfileUpdate{VisaCategory: &visa},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.VisaCategory != models.VisaO1A {
		t.Errorf("VisaCategory = %q", updated.VisaCategory)
	}
	if updated.DocumentCount != 0 || updated.RFERisk != models.DefaultRFERisk {
		t.Errorf("derived fields not reset: count=%d risk=%d", updated.DocumentCount, updated.RFERisk)
	}

	checklist, err := env.checklist.Get(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := GenerateChecklist(models.VisaO1A)
	if checklist.VisaCategory != models.VisaO1A || len(checklist.Categories) != len(want.Categories) {
		t.Errorf("checklist not regenerated: %+v", checklist)
	}
	if checklist.Item("engagement-advisory-opinion") == nil {
		t.Error("O-1A item missing")
	}

	entries, _ := env.timeline.List(ctx, user.ID)
	last := entries[len(entries)-1]
	if last.Title != "Visa Category Updated" || last.Description != "Changed from EB-1A to O-1A" {
		t.Errorf("last timeline entry = %+v", last)
	}
}

func TestProfileService_UpdateNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)
	before, _ := env.timeline.List(ctx, user.ID)

	name := " Augusta "
	updated, err := env.profiles.Update(ctx, UpdateProfileRequest{
		UserID: user.ID,
		Update: models.ProfileUpdate{FirstName: &name},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.FirstName != "Augusta" || updated.LastName != "Lovelace" {
		t.Errorf("names = %q %q", updated.FirstName, updated.LastName)
	}

	after, _ := env.timeline.List(ctx, user.ID)
	if len(after) != len(before) {
		t.Error("name change appended a timeline entry")
	}

	got, err := env.profiles.Get(ctx, user.ID)
	if err != nil || got.FirstName != "Augusta" {
		t.Errorf("Get after update = %+v, %v", got, err)
	}
}

func TestProfileService_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)

	bad := models.VisaCategory("K-1")
	if _, err := env.profiles.Update(ctx, UpdateProfileRequest{UserID: user.ID, Update: models.ProfileUpdate{VisaCategory: &bad}}); !errors.Is(err, ErrInvalidVisaCategory) {
		t.Errorf("bad visa: got %v", err)
	}
	if _, err := env.profiles.Update(ctx, UpdateProfileRequest{UserID: user.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty update: got %v", err)
	}
	if _, err := env.profiles.Get(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestProfileService_GetIsStable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)

	a, err := env.profiles.Get(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	a.FirstName = "mutated"

	b, err := env.profiles.Get(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b.FirstName != "Ada" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestProfileService_ConcurrentWithChecklistToggles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)

	checklist, err := env.checklist.Get(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	var itemIDs []string
	for _, cat := range checklist.Categories {
		for _, it := range cat.Items {
			itemIDs = append(itemIDs, it.ID)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2*len(itemIDs))
	for i, id := range itemIDs {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			done := true
			_, err := env.checklist.UpdateItem(ctx, UpdateItemRequest{
				UserID: user.ID,
				ItemID: id,
				Update: models.ChecklistItemUpdate{Completed: &done},
			})
			errs <- err
		}(id)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Ada-%d", i)
			_, err := env.profiles.Update(ctx, UpdateProfileRequest{
				UserID: user.ID,
				Update: models.ProfileUpdate{FirstName: &name},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	stored, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	final, err := env.checklist.Get(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	completed, requiredDone, requiredTotal := final.Progress()
	if completed != len(itemIDs) {
		t.Fatalf("completed = %d, want %d", completed, len(itemIDs))
	}
	if stored.DocumentCount != completed {
		t.Errorf("DocumentCount = %d, checklist has %d completed", stored.DocumentCount, completed)
	}
	if want := ComputeRFERisk(requiredDone, requiredTotal); stored.RFERisk != want {
		t.Errorf("RFERisk = %d, want %d", stored.RFERisk, want)
	}
	if !strings.HasPrefix(stored.FirstName, "Ada-") {
		t.Errorf("FirstName = %q, a name update was lost", stored.FirstName)
	}
}

// userWriteFailStore fails writes to user records once armed
type userWriteFailStore struct {
	kv.Store
	mu    sync.Mutex
	armed bool
}

func (s *userWriteFailStore) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
}

func (s *userWriteFailStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	armed := s.armed
	s.mu.Unlock()
	if armed && strings.HasPrefix(key, "user:") {
		return errors.New("write failed")
	}
	return s.Store.Put(ctx, key, value)
}

func TestProfileService_VisaChangeRestoresChecklistWhenUserWriteFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, "ada@example.com", models.VisaEB1A)

	done := true
	if _, err := env.checklist.UpdateItem(ctx, UpdateItemRequest{
		UserID: user.ID,
		ItemID: "evidence-awards",
		Update: models.ChecklistItemUpdate{Completed: &done},
	}); err != nil {
		t.Fatal(err)
	}

	store := &userWriteFailStore{Store: env.store}
	profiles := NewProfileService(
		ProfileWithUserRepository(repository.NewUserRepository(store)),
		ProfileWithChecklistService(env.checklist),
		ProfileWithTimelineService(env.timeline),
		ProfileWithCache(env.cache),
		ProfileWithLogger(discardLogger()),
	)
	store.arm()

	visa := models.VisaO1A
	if _, err := profiles.Update(ctx, UpdateProfileRequest{
		UserID: user.ID,
		Update: models.ProfileUpdate{VisaCategory: &visa},
	}); err == nil {
		t.Fatal("Update succeeded with a failing user write")
	}

	stored, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.VisaCategory != models.VisaEB1A {
		t.Errorf("stored visa = %q", stored.VisaCategory)
	}
	checklist, err := env.checklist.Get(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if checklist.VisaCategory != models.VisaEB1A {
		t.Errorf("checklist visa = %q, want it restored to EB-1A", checklist.VisaCategory)
	}
	if it := checklist.Item("evidence-awards"); it == nil || !it.Completed {
		t.Error("completed item lost")
	}
	if stored.DocumentCount != 1 {
		t.Errorf("DocumentCount = %d", stored.DocumentCount)
	}
}
