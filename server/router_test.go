package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"visamate-backend/handlers"
	"visamate-backend/server"
	"visamate-backend/server/servertest"

	"github.com/gin-gonic/gin"
)

const testAPIKey = servertest.APIKey

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Session *struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"session"`
	User json.RawMessage `json:"user"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	return &testServer{t: t, handler: server.NewRouter(servertest.NewDeps(t))}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func apiKey() map[string]string { return map[string]string{"apikey": testAPIKey} }

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// signIn creates an account and returns its access and refresh tokens
func (s *testServer) signIn(email string) (string, string) {
	s.t.Helper()
	w, _ := s.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":         email,
		"password":      "password123",
		"first_name":    "Ada",
		"last_name":     "Lovelace",
		"visa_category": "EB-1A",
	}, apiKey())
	if w.Code != http.StatusCreated {
		s.t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}

	w, env := s.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": "password123",
	}, apiKey())
	if w.Code != http.StatusOK || env.Session == nil {
		s.t.Fatalf("signin status = %d: %s", w.Code, w.Body)
	}
	return env.Session.AccessToken, env.Session.RefreshToken
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(http.MethodGet, "/api/health", nil, nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("health = %d %s", w.Code, w.Body)
	}

	deps := servertest.NewDeps(t)
	deps.Store = failingPinger{}
	down := &testServer{t: t, handler: server.NewRouter(deps)}
	w, env = down.do(http.MethodGet, "/api/health", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health with failing store = %d, want 503", w.Code)
	}
	if env.Success || env.Error == nil || env.Error.Code != "STORE_UNAVAILABLE" {
		t.Errorf("unexpected body %s", w.Body)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "ada@example.com", "password": "password123", "visa_category": "EB-1A",
	}, nil)
	if w.Code != http.StatusUnauthorized || env.Error.Code != "INVALID_API_KEY" {
		t.Fatalf("signup without key = %d %s", w.Code, w.Body)
	}

	access, refresh := s.signIn("ada@example.com")

	w, env = s.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "ADA@example.com", "password": "password123", "visa_category": "EB-1A",
	}, apiKey())
	if w.Code != http.StatusConflict || env.Error.Code != "USER_EXISTS" {
		t.Errorf("duplicate signup = %d %s", w.Code, w.Body)
	}

	w, env = s.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	}, apiKey())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin = %d", w.Code)
	}
	if env.Error.Message != "Invalid login credentials" {
		t.Errorf("message = %q", env.Error.Message)
	}

	w, _ = s.do(http.MethodGet, "/api/user/profile", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("profile without token = %d, want 401", w.Code)
	}
	w, env = s.do(http.MethodGet, "/api/user/profile", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("profile = %d %s", w.Code, w.Body)
	}
	var profile map[string]any
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatal(err)
	}
	if profile["email"] != "ada@example.com" {
		t.Errorf("email = %v", profile["email"])
	}
	if _, leaked := profile["password_hash"]; leaked {
		t.Error("password hash leaked in profile response")
	}

	// refresh rotates: the old token stops working
	w, env = s.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": refresh}, apiKey())
	if w.Code != http.StatusOK || env.Session == nil || env.Session.RefreshToken == refresh {
		t.Fatalf("refresh = %d %s", w.Code, w.Body)
	}
	newRefresh := env.Session.RefreshToken
	w, _ = s.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": refresh}, apiKey())
	if w.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh = %d, want 401", w.Code)
	}

	w, _ = s.do(http.MethodPost, "/api/auth/signout", map[string]string{"refresh_token": newRefresh}, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("signout = %d %s", w.Code, w.Body)
	}
	w, _ = s.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": newRefresh}, apiKey())
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after signout = %d, want 401", w.Code)
	}

	// signout without a body is accepted
	w, _ = s.do(http.MethodPost, "/api/auth/signout", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Errorf("empty signout = %d %s", w.Code, w.Body)
	}
}

func TestChecklistToggleUpdatesProfile(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signIn("grace@example.com")

	w, env := s.do(http.MethodPut, "/api/user/checklist/identity-passport",
		map[string]bool{"completed": true}, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d %s", w.Code, w.Body)
	}

	var result struct {
		Checklist struct {
			Categories []struct {
				Items []struct {
					ID        string `json:"id"`
					Completed bool   `json:"completed"`
				} `json:"items"`
			} `json:"categories"`
		} `json:"checklist"`
		User struct {
			RFERisk int `json:"rfe_risk"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, cat := range result.Checklist.Categories {
		for _, it := range cat.Items {
			if it.ID == "identity-passport" {
				found = it.Completed
			}
		}
	}
	if !found {
		t.Error("identity-passport not completed in returned checklist")
	}
	if result.User.RFERisk >= 85 {
		t.Errorf("rfe_risk = %d, want below 85 after completing a required item", result.User.RFERisk)
	}

	w, env = s.do(http.MethodPut, "/api/user/checklist/no-such-item",
		map[string]bool{"completed": true}, bearer(access))
	if w.Code != http.StatusNotFound || env.Error.Code != "ITEM_NOT_FOUND" {
		t.Errorf("unknown item = %d %s", w.Code, w.Body)
	}
}

func TestTimelineAppendAndList(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signIn("kat@example.com")

	w, _ := s.do(http.MethodPost, "/api/user/timeline", map[string]string{"title": "Filed I-140"}, bearer(access))
	if w.Code != http.StatusCreated {
		t.Fatalf("append = %d %s", w.Code, w.Body)
	}
	w, _ = s.do(http.MethodPost, "/api/user/timeline", map[string]string{"title": "  "}, bearer(access))
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", w.Code)
	}

	_, env := s.do(http.MethodGet, "/api/user/timeline", nil, bearer(access))
	var entries []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) < 3 {
		t.Fatalf("got %d entries, want signup seeds plus the appended one", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Title != "Filed I-140" {
		t.Errorf("last entry = %q", last.Title)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID <= entries[i-1].ID {
			t.Errorf("ids not increasing at %d: %d <= %d", i, entries[i].ID, entries[i-1].ID)
		}
	}
}

func multipartUpload(t *testing.T, filename string, content []byte, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestFileLifecycle(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signIn("linus@example.com")

	w, env := s.serve(multipartUpload(t, "resume.txt", []byte("ten years of kernel work"), access))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", w.Code, w.Body)
	}
	var obj struct {
		Path string `json:"path"`
		URL  string `json:"url"`
		Size int64  `json:"size"`
	}
	if err := json.Unmarshal(env.Data, &obj); err != nil {
		t.Fatal(err)
	}
	if obj.Path == "" || !strings.HasPrefix(obj.URL, "http://files.test/") {
		t.Fatalf("unexpected stored object %+v", obj)
	}

	w, env = s.do(http.MethodPost, "/api/user/files", map[string]any{
		"id":           "7f1b0c2e-4b7a-4f57-9a43-1f1d2b9f6a10",
		"filename":     "resume.txt",
		"mime_type":    "text/plain",
		"size":         obj.Size,
		"category":     "employment",
		"storage_path": obj.Path,
	}, bearer(access))
	if w.Code != http.StatusCreated {
		t.Fatalf("record = %d %s", w.Code, w.Body)
	}

	_, env = s.do(http.MethodGet, "/api/user/files", nil, bearer(access))
	var files []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("listed %d files, want 1", len(files))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/files/"+files[0].ID+"/content", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w, _ = s.serve(req)
	if w.Code != http.StatusOK || w.Body.String() != "ten years of kernel work" {
		t.Errorf("content = %d %q", w.Code, w.Body.String())
	}

	w, _ = s.do(http.MethodDelete, "/api/user/files?id="+files[0].ID, nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d %s", w.Code, w.Body)
	}
	w, _ = s.do(http.MethodDelete, "/api/user/files?id="+files[0].ID, nil, bearer(access))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	w, _ = s.do(http.MethodDelete, "/api/user/files?id=not-a-uuid", nil, bearer(access))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signIn("margaret@example.com")

	w, env := s.serve(multipartUpload(t, "payload.exe", []byte("MZ"), access))
	if w.Code != http.StatusUnsupportedMediaType || env.Error.Code != "UNSUPPORTED_FILE_TYPE" {
		t.Errorf("exe upload = %d %s", w.Code, w.Body)
	}

	w, env = s.serve(multipartUpload(t, "big.txt", bytes.Repeat([]byte("a"), 5000), access))
	if w.Code != http.StatusRequestEntityTooLarge || env.Error.Code != "FILE_TOO_LARGE" {
		t.Errorf("oversized upload = %d %s", w.Code, w.Body)
	}
}

func TestGenerateDocument(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signIn("barbara@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/user/documents?download=true",
		strings.NewReader(`{"kind":"cover_letter","fields":{"field":"computer science"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)
	w, _ := s.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("generate = %d %s", w.Code, w.Body)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "cover_letter_Ada_Lovelace.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "computer science") {
		t.Error("rendered letter is missing the field of expertise")
	}

	w, env := s.do(http.MethodPost, "/api/user/documents", map[string]any{
		"kind": "recommendation_letter", "fields": map[string]string{},
	}, bearer(access))
	if w.Code != http.StatusBadRequest || env.Error.Code != "INVALID_INPUT" {
		t.Errorf("missing fields = %d %s", w.Code, w.Body)
	}

	w, env = s.do(http.MethodPost, "/api/user/documents", map[string]any{
		"kind": "cover_letter", "fields": map[string]string{"field": "cs"}, "refine": true,
	}, bearer(access))
	if w.Code != http.StatusServiceUnavailable || env.Error.Code != "REFINER_UNAVAILABLE" {
		t.Errorf("refine without model = %d %s", w.Code, w.Body)
	}

	w, env = s.do(http.MethodGet, "/api/user/jobs/7f1b0c2e-4b7a-4f57-9a43-1f1d2b9f6a10", nil, bearer(access))
	if w.Code != http.StatusNotFound || env.Error.Code != "JOB_NOT_FOUND" {
		t.Errorf("unknown job = %d %s", w.Code, w.Body)
	}
}

func TestDiagnosticEcho(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signIn("edsger@example.com")

	_, env := s.do(http.MethodGet, "/api/test", nil, nil)
	var anon map[string]any
	_ = json.Unmarshal(env.Data, &anon)
	if anon["authenticated"] != false {
		t.Errorf("anonymous echo = %v", anon)
	}

	_, env = s.do(http.MethodGet, "/api/test", nil, bearer(access))
	var authed map[string]any
	_ = json.Unmarshal(env.Data, &authed)
	if authed["authenticated"] != true || authed["user_id"] == nil {
		t.Errorf("authenticated echo = %v", authed)
	}
}

func TestMetricsAndNotFound(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/api/health", nil, nil)

	w, env := s.do(http.MethodGet, "/api/nope", nil, nil)
	if w.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown route = %d %s", w.Code, w.Body)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `visamate_http_requests_total{method="GET",path="/api/health",status="200"}`) {
		t.Errorf("health request not counted:\n%s", rec.Body.String())
	}
}

var _ handlers.Pinger = failingPinger{}
