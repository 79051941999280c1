package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"visamate-backend/models"
)

func TestDashboardLoad_NeedsSignIn(t *testing.T) {
	f := newFakeAPI(t)
	s := f.stack()

	if _, err := s.dash.Load(context.Background()); !errors.Is(err, ErrNeedsSignIn) {
		t.Fatalf("err = %v, want ErrNeedsSignIn", err)
	}
	if f.count("GET /api/health") != 0 {
		t.Error("no request should be made without a session")
	}
}

func TestDashboardLoad_HealthFailureAborts(t *testing.T) {
	f := newFakeAPI(t)
	f.set("GET /api/health", failWith(http.StatusServiceUnavailable))
	s := f.stack()
	s.signIn(t, "ada@example.com")

	data, err := s.dash.Load(context.Background())
	if !errors.Is(err, ErrServerUnreachable) {
		t.Fatalf("err = %v, want ErrServerUnreachable", err)
	}
	if data.Timeline != nil || data.Checklist != nil {
		t.Errorf("expected no data on abort, got %+v", data)
	}
	if n := f.count("GET /api/user/timeline"); n != 0 {
		t.Errorf("timeline fetched %d times after health failure", n)
	}
	if n := f.count("GET /api/user/checklist"); n != 0 {
		t.Errorf("checklist fetched %d times after health failure", n)
	}
}

func TestDashboardLoad_TimelineFailureStillLoadsChecklist(t *testing.T) {
	f := newFakeAPI(t)
	f.set("GET /api/user/timeline", failWith(http.StatusInternalServerError))
	s := f.stack()
	s.signIn(t, "ada@example.com")

	data, err := s.dash.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data.TimelineErr == nil {
		t.Error("timeline error not recorded")
	}
	if data.Timeline == nil || len(data.Timeline) != 0 {
		t.Errorf("timeline = %v, want empty list", data.Timeline)
	}
	if f.count("GET /api/user/checklist") != 1 {
		t.Error("checklist was not requested")
	}
	if len(data.Checklist) != 2 || data.ChecklistErr != nil {
		t.Errorf("checklist = %v err=%v", data.Checklist, data.ChecklistErr)
	}
}

func TestDashboardLoad_ChecklistFailureLeavesEmptyList(t *testing.T) {
	f := newFakeAPI(t)
	f.set("GET /api/user/checklist", failWith(http.StatusInternalServerError))
	s := f.stack()
	s.signIn(t, "ada@example.com")

	data, err := s.dash.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Timeline) != 1 {
		t.Errorf("timeline = %v", data.Timeline)
	}
	if data.Checklist == nil || len(data.Checklist) != 0 || data.ChecklistErr == nil {
		t.Errorf("checklist = %v err=%v", data.Checklist, data.ChecklistErr)
	}
}

func TestToggleItem_ReplacesWholeChecklist(t *testing.T) {
	f := newFakeAPI(t)
	f.set("PUT /api/user/checklist/identity-passport", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"checklist": models.Checklist{
				VisaCategory: models.VisaEB1A,
				Categories: []models.ChecklistCategory{
					{ID: "identity", Items: []models.ChecklistItem{{ID: "identity-passport", Required: true, Completed: true}}},
				},
			},
			"user": f.user,
		})
	})
	s := f.stack()
	s.signIn(t, "ada@example.com")
	if _, err := s.dash.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	profileCalls := f.count("GET /api/user/profile")

	if err := s.dash.ToggleItem(context.Background(), "identity-passport", true); err != nil {
		t.Fatal(err)
	}

	got := s.dash.Data().Checklist
	if len(got) != 1 || got[0].ID != "identity" || !got[0].Items[0].Completed {
		t.Errorf("checklist = %+v, want exactly the server's copy", got)
	}
	if f.count("GET /api/user/profile") != profileCalls+1 {
		t.Error("profile was not refreshed after toggle")
	}
}

func TestToggleItem_FailureKeepsState(t *testing.T) {
	f := newFakeAPI(t)
	f.set("PUT /api/user/checklist/identity-passport", failWith(http.StatusInternalServerError))
	s := f.stack()
	s.signIn(t, "ada@example.com")
	if _, err := s.dash.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := s.dash.ToggleItem(context.Background(), "identity-passport", true)
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusInternalServerError {
		t.Fatalf("err = %v", err)
	}
	if got := s.dash.Data().Checklist; len(got) != 2 || got[0].Items[0].Completed {
		t.Errorf("local checklist changed: %+v", got)
	}
}
