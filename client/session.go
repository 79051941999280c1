package client

import (
	"context"
	"log/slog"
	"sync"

	"visamate-backend/models"

	"github.com/google/uuid"
)

// SessionStatus is the tag of a SessionState
type SessionStatus int

const (
	Anonymous SessionStatus = iota
	Authenticating
	Authenticated
	Invalid
)

func (s SessionStatus) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// SessionState is the single source for auth gating. User is set only
// when Status is Authenticated. Reason is set only when Status is Invalid.
type SessionState struct {
	Status SessionStatus
	User   *models.User
	Reason string
}

// IsAuthenticated reports whether a signed-in user is present
func (s SessionState) IsAuthenticated() bool {
	return s.Status == Authenticated && s.User != nil
}

// Result is the outcome of a user-facing session action
type Result struct {
	Success bool
	Err     error
}

// Message returns the user-facing error text, or "" on success
func (r Result) Message() string {
	return FriendlyMessage(r.Err)
}

func failed(err error) Result { return Result{Err: err} }

// Session owns the session lifecycle and publishes state changes
type Session struct {
	public *PublicClient
	authed *AuthedClient
	tokens *TokenStore
	logger *slog.Logger

	mu     sync.Mutex
	state  SessionState
	subs   map[int]func(SessionState)
	nextID int

	// epoch advances on every state transition. A profile fetched under an
	// older epoch, or for another user, is never applied.
	epoch uint64
	// refreshUser ordering: responses older than applied are dropped
	issued  uint64
	applied uint64
}

// NewSession wires a session over the two API clients and the token store.
// A 401 from the authenticated client moves the session to Invalid.
func NewSession(public *PublicClient, authed *AuthedClient, tokens *TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		public: public,
		authed: authed,
		tokens: tokens,
		logger: logger.With(slog.String("component", "session")),
		subs:   make(map[int]func(SessionState)),
	}
	authed.OnUnauthorized(func() {
		s.setState(SessionState{Status: Invalid, Reason: "session expired"})
	})
	return s
}

// State returns the current state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the signed-in user, or nil
func (s *Session) User() *models.User {
	st := s.State()
	if !st.IsAuthenticated() {
		return nil
	}
	return st.User
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn runs synchronously after each change.
func (s *Session) Subscribe(fn func(SessionState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.epoch++
	s.state = st
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, st)
}

func (s *Session) authenticated(user *models.User) {
	s.mu.Lock()
	s.epoch++
	st := SessionState{Status: Authenticated, User: user}
	s.state = st
	s.cacheUserLocked(user)
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, st)
}

// ticket captures the identity a profile request was made for
type ticket struct {
	epoch  uint64
	seq    uint64
	userID uuid.UUID
}

func (s *Session) newTicket() (ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() || s.state.User == nil {
		return ticket{}, false
	}
	s.issued++
	return ticket{epoch: s.epoch, seq: s.issued, userID: s.state.User.ID}, true
}

// applyUser installs a fetched profile unless the session moved on since
// tk was issued: another transition, another user or a newer response.
// The check and the write happen under one lock.
func (s *Session) applyUser(tk ticket, user *models.User) bool {
	s.mu.Lock()
	if tk.epoch != s.epoch || !s.state.IsAuthenticated() || s.state.User == nil ||
		s.state.User.ID != tk.userID || user.ID != tk.userID || tk.seq < s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = tk.seq
	st := SessionState{Status: Authenticated, User: user}
	s.state = st
	s.cacheUserLocked(user)
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, st)
	return true
}

func (s *Session) cacheUserLocked(user *models.User) {
	if err := s.tokens.SetUser(user); err != nil {
		s.logger.Warn("failed to cache user", slog.String("error", err.Error()))
	}
}

func (s *Session) subscribersLocked() []func(SessionState) {
	subs := make([]func(SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(SessionState), st SessionState) {
	for _, fn := range subs {
		fn(st)
	}
}

func (s *Session) clearTokens() {
	if err := s.tokens.Clear(); err != nil {
		s.logger.Warn("failed to clear tokens", slog.String("error", err.Error()))
	}
}

// Initialize restores a stored session. Failures are logged and leave the
// session Anonymous with the tokens removed.
func (s *Session) Initialize(ctx context.Context) {
	token, err := s.tokens.AccessToken()
	if err != nil {
		s.logger.Warn("failed to read stored token", slog.String("error", err.Error()))
	}
	if token == "" {
		s.setState(SessionState{Status: Anonymous})
		return
	}

	s.setState(SessionState{Status: Authenticating})
	user, err := s.authed.Profile(ctx)
	if err != nil {
		s.logger.Info("stored session rejected", slog.String("error", err.Error()))
		s.clearTokens()
		s.setState(SessionState{Status: Anonymous})
		return
	}
	s.authenticated(user)
}

// SignIn authenticates with email and password. Nothing is stored unless
// the response carries both a session and a user.
func (s *Session) SignIn(ctx context.Context, email, password string) Result {
	prev := s.State()
	s.setState(SessionState{Status: Authenticating})

	resp, err := s.public.SignIn(ctx, email, password)
	if err != nil {
		s.restoreAfterFailure(prev)
		return failed(err)
	}
	if err := s.tokens.SetSession(resp.Session); err != nil {
		s.clearTokens()
		s.restoreAfterFailure(prev)
		return failed(err)
	}
	s.authenticated(resp.User)
	return Result{Success: true}
}

func (s *Session) restoreAfterFailure(prev SessionState) {
	if prev.Status == Authenticating {
		prev = SessionState{Status: Anonymous}
	}
	s.setState(prev)
}

// SignUp creates an account without signing in
func (s *Session) SignUp(ctx context.Context, req SignUpRequest) Result {
	if _, err := s.public.SignUp(ctx, req); err != nil {
		return failed(err)
	}
	return Result{Success: true}
}

// SignOut clears local state first, then revokes the refresh token on the
// server best-effort. It never fails.
func (s *Session) SignOut(ctx context.Context) {
	access, _ := s.tokens.AccessToken()
	refresh, _ := s.tokens.RefreshToken()

	s.clearTokens()
	s.setState(SessionState{Status: Anonymous})

	if access == "" {
		return
	}
	err := s.authed.Revoke(ctx, models.Session{AccessToken: access, RefreshToken: refresh})
	if err != nil {
		s.logger.Info("server sign-out failed", slog.String("error", err.Error()))
	}
}

// UpdateProfile applies a partial update. The cached user changes only
// after the server accepts it, and only if the same user is still signed in.
func (s *Session) UpdateProfile(ctx context.Context, update models.ProfileUpdate) Result {
	tk, ok := s.newTicket()
	if !ok {
		return failed(ErrNeedsSignIn)
	}
	user, err := s.authed.UpdateProfile(ctx, update)
	if err != nil {
		return failed(err)
	}
	// the update response supersedes any refresh still in flight
	s.mu.Lock()
	s.issued++
	tk.seq = s.issued
	s.mu.Unlock()
	if !s.applyUser(tk, user) {
		s.logger.Info("session changed during profile update, response not applied")
	}
	return Result{Success: true}
}

// RefreshUser re-fetches the profile. On failure the previous state is
// kept. A response is discarded when a newer one was applied first or
// when the session changed hands while it was in flight.
func (s *Session) RefreshUser(ctx context.Context) error {
	tk, ok := s.newTicket()
	if !ok {
		return ErrNeedsSignIn
	}

	user, err := s.authed.Profile(ctx)
	if err != nil {
		return err
	}

	if !s.applyUser(tk, user) {
		s.logger.Debug("stale profile response dropped")
	}
	return nil
}
