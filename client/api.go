// Package client is the Go client for the VisaMate API: token persistence,
// public and authenticated API clients, the session lifecycle, the
// dashboard loader and the file uploader.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visamate-backend/models"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every request unless overridden
const DefaultTimeout = 15 * time.Second

// Option configures an API client
type Option func(*transport)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(t *transport) {
		t.http = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(t *transport) {
		t.timeout = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *transport) {
		t.logger = logger
	}
}

type transport struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func newTransport(baseURL, component string, opts []Option) *transport {
	t := &transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("component", component))
	return t
}

type request struct {
	method      string
	path        string
	header      http.Header
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, v any) (request, error) {
	r := request{method: method, path: path, header: http.Header{}}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return r, fmt.Errorf("encode request: %w", err)
		}
		r.body = bytes.NewReader(data)
		r.contentType = "application/json"
	}
	return r, nil
}

// send performs the request and returns the raw body of a 2xx response.
// Non-2xx responses become *HTTPError.
func (t *transport) send(ctx context.Context, r request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	op := r.method + " " + r.path
	req, err := http.NewRequestWithContext(ctx, r.method, t.baseURL+r.path, r.body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := &HTTPError{Status: resp.StatusCode}
		var env struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			he.Code = env.Error.Code
			he.Message = env.Error.Message
		}
		t.logger.Debug("request failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("code", he.Code),
		)
		return nil, he
	}
	return body, nil
}

// call sends r and decodes the data member of a success envelope into out
func (t *transport) call(ctx context.Context, r request, out any) error {
	body, err := t.send(ctx, r)
	if err != nil {
		return err
	}
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !env.Success {
		return fmt.Errorf("%w: success flag not set", ErrMalformedResponse)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// SignInResponse is the body of a successful sign-in
type SignInResponse struct {
	Session models.Session
	User    *models.User
}

// SignUpRequest carries the sign-up form
type SignUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	VisaCategory string `json:"visa_category"`
}

// PublicClient calls endpoints gated by the public API key
type PublicClient struct {
	t      *transport
	apiKey string
}

// NewPublicClient creates a client for baseURL (including the API prefix)
func NewPublicClient(baseURL, apiKey string, opts ...Option) *PublicClient {
	return &PublicClient{t: newTransport(baseURL, "public_client", opts), apiKey: apiKey}
}

func (c *PublicClient) withKey(r request) request {
	r.header.Set("apikey", c.apiKey)
	return r
}

// Health checks that the server is up
func (c *PublicClient) Health(ctx context.Context) error {
	r, _ := jsonRequest(http.MethodGet, "/health", nil)
	_, err := c.t.send(ctx, c.withKey(r))
	return err
}

// SignIn exchanges credentials for a session. A response without both a
// session and a user is reported as ErrMalformedResponse.
func (c *PublicClient) SignIn(ctx context.Context, email, password string) (*SignInResponse, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return c.session(ctx, c.withKey(r))
}

// Refresh rotates a refresh token into a new session
func (c *PublicClient) Refresh(ctx context.Context, refreshToken string) (*SignInResponse, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	return c.session(ctx, c.withKey(r))
}

func (c *PublicClient) session(ctx context.Context, r request) (*SignInResponse, error) {
	body, err := c.t.send(ctx, r)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Success bool            `json:"success"`
		Session *models.Session `json:"session"`
		User    *models.User    `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !resp.Success || resp.Session == nil || resp.Session.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: session or user missing", ErrMalformedResponse)
	}
	return &SignInResponse{Session: *resp.Session, User: resp.User}, nil
}

// SignUp creates an account. It does not sign in.
func (c *PublicClient) SignUp(ctx context.Context, req SignUpRequest) (*models.User, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/signup", req)
	if err != nil {
		return nil, err
	}
	body, err := c.t.send(ctx, c.withKey(r))
	if err != nil {
		return nil, err
	}
	var resp struct {
		Success bool         `json:"success"`
		User    *models.User `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !resp.Success || resp.User == nil {
		return nil, fmt.Errorf("%w: user missing", ErrMalformedResponse)
	}
	return resp.User, nil
}

// AuthedClient calls bearer-protected endpoints with the stored access
// token. A 401 clears the token store.
type AuthedClient struct {
	t              *transport
	tokens         *TokenStore
	onUnauthorized func()
}

// NewAuthedClient creates a client for baseURL (including the API prefix)
func NewAuthedClient(baseURL string, tokens *TokenStore, opts ...Option) *AuthedClient {
	return &AuthedClient{t: newTransport(baseURL, "authed_client", opts), tokens: tokens}
}

// OnUnauthorized registers fn to run after a 401 has cleared the tokens
func (c *AuthedClient) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

func (c *AuthedClient) authorize(r request) (request, error) {
	token, err := c.tokens.AccessToken()
	if err != nil {
		return r, err
	}
	if token == "" {
		return r, ErrNeedsSignIn
	}
	r.header.Set("Authorization", "Bearer "+token)
	return r, nil
}

func (c *AuthedClient) handle(err error) error {
	if IsUnauthorized(err) {
		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.t.logger.Warn("failed to clear tokens", slog.String("error", clearErr.Error()))
		}
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return err
}

func (c *AuthedClient) call(ctx context.Context, method, path string, in, out any) error {
	r, err := jsonRequest(method, path, in)
	if err != nil {
		return err
	}
	if r, err = c.authorize(r); err != nil {
		return err
	}
	return c.handle(c.t.call(ctx, r, out))
}

// Profile returns the signed-in user's profile
func (c *AuthedClient) Profile(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.call(ctx, http.MethodGet, "/user/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile applies a partial update and returns the new profile
func (c *AuthedClient) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var u models.User
	if err := c.call(ctx, http.MethodPut, "/user/profile", update, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Timeline returns the user's timeline in creation order
func (c *AuthedClient) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	var entries []models.TimelineEntry
	if err := c.call(ctx, http.MethodGet, "/user/timeline", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendTimeline adds a note to the timeline
func (c *AuthedClient) AppendTimeline(ctx context.Context, title, description string) (*models.TimelineEntry, error) {
	var entry models.TimelineEntry
	body := map[string]string{"title": title, "description": description}
	if err := c.call(ctx, http.MethodPost, "/user/timeline", body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Checklist returns the user's checklist
func (c *AuthedClient) Checklist(ctx context.Context) (*models.Checklist, error) {
	var cl models.Checklist
	if err := c.call(ctx, http.MethodGet, "/user/checklist", nil, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// ChecklistUpdate is the server's answer to an item update
type ChecklistUpdate struct {
	Checklist *models.Checklist `json:"checklist"`
	User      *models.User      `json:"user"`
}

// UpdateChecklistItem changes one item and returns the full checklist
func (c *AuthedClient) UpdateChecklistItem(ctx context.Context, itemID string, update models.ChecklistItemUpdate) (*ChecklistUpdate, error) {
	var res ChecklistUpdate
	path := "/user/checklist/" + url.PathEscape(itemID)
	if err := c.call(ctx, http.MethodPut, path, update, &res); err != nil {
		return nil, err
	}
	if res.Checklist == nil {
		return nil, fmt.Errorf("%w: checklist missing", ErrMalformedResponse)
	}
	return &res, nil
}

// UploadFile sends raw bytes to object storage
func (c *AuthedClient) UploadFile(ctx context.Context, filename string, data io.Reader) (*models.StoredObject, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	r := request{
		method:      http.MethodPost,
		path:        "/upload/file",
		header:      http.Header{},
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}
	if r, err = c.authorize(r); err != nil {
		return nil, err
	}

	var obj models.StoredObject
	if err := c.handle(c.t.call(ctx, r, &obj)); err != nil {
		return nil, err
	}
	if obj.Path == "" {
		return nil, fmt.Errorf("%w: storage path missing", ErrMalformedResponse)
	}
	return &obj, nil
}

// RecordFile saves metadata for an uploaded object
func (c *AuthedClient) RecordFile(ctx context.Context, file models.File) (*models.File, error) {
	var saved models.File
	if err := c.call(ctx, http.MethodPost, "/user/files", file, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListFiles returns the user's file records, newest first
func (c *AuthedClient) ListFiles(ctx context.Context) ([]models.File, error) {
	var files []models.File
	if err := c.call(ctx, http.MethodGet, "/user/files", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteFile removes a file record and its stored object
func (c *AuthedClient) DeleteFile(ctx context.Context, id uuid.UUID) error {
	return c.call(ctx, http.MethodDelete, "/user/files?id="+url.QueryEscape(id.String()), nil, nil)
}

// DiscardUpload deletes an uploaded object that has no file record
func (c *AuthedClient) DiscardUpload(ctx context.Context, storagePath string) error {
	return c.call(ctx, http.MethodDelete, "/upload/file?path="+url.QueryEscape(storagePath), nil, nil)
}

// Revoke signs the given session out on the server. It takes the tokens
// explicitly because the caller may already have cleared the store.
func (c *AuthedClient) Revoke(ctx context.Context, session models.Session) error {
	if session.AccessToken == "" {
		return ErrNeedsSignIn
	}
	var body any
	if session.RefreshToken != "" {
		body = map[string]string{"refresh_token": session.RefreshToken}
	}
	r, err := jsonRequest(http.MethodPost, "/auth/signout", body)
	if err != nil {
		return err
	}
	r.header.Set("Authorization", "Bearer "+session.AccessToken)
	_, err = c.t.send(ctx, r)
	return err
}

// GenerateRequest asks the server to render a document
type GenerateRequest struct {
	Kind         models.DocumentKind `json:"kind"`
	Fields       map[string]string   `json:"fields,omitempty"`
	Refine       bool                `json:"refine,omitempty"`
	Instructions string              `json:"instructions,omitempty"`
}

// Document is a rendered document
type Document struct {
	Kind     models.DocumentKind `json:"kind"`
	Filename string              `json:"filename"`
	Content  string              `json:"content"`
}

// GenerateResult holds either the document or, for refinement, the job id
type GenerateResult struct {
	Document *Document
	JobID    uuid.UUID
}

// Generate renders a document, or starts a refinement job when req.Refine is set
func (c *AuthedClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.Refine {
		var job struct {
			JobID uuid.UUID `json:"job_id"`
		}
		if err := c.call(ctx, http.MethodPost, "/user/documents", req, &job); err != nil {
			return nil, err
		}
		if job.JobID == uuid.Nil {
			return nil, fmt.Errorf("%w: job id missing", ErrMalformedResponse)
		}
		return &GenerateResult{JobID: job.JobID}, nil
	}

	var doc Document
	if err := c.call(ctx, http.MethodPost, "/user/documents", req, &doc); err != nil {
		return nil, err
	}
	return &GenerateResult{Document: &doc}, nil
}

// Job returns a refinement job's status
func (c *AuthedClient) Job(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := c.call(ctx, http.MethodGet, "/user/jobs/"+id.String(), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitJob polls a job until it completes, fails or ctx ends
func (c *AuthedClient) WaitJob(ctx context.Context, id uuid.UUID, interval time.Duration) (*models.GenerationJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case models.JobStatusCompleted:
			return job, nil
		case models.JobStatusFailed:
			msg := "refinement failed"
			if job.ErrorMessage != nil {
				msg = *job.ErrorMessage
			}
			return job, errors.New(msg)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
