package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"visamate-backend/auth"
	"visamate-backend/kv"
	"visamate-backend/models"
	"visamate-backend/repository"

	"github.com/google/uuid"
)

// AuthService handles sign-up, sign-in and token lifecycle
type AuthService struct {
	userRepo   *repository.UserRepository
	tokenRepo  *repository.TokenRepository
	checklist  *ChecklistService
	timeline   *TimelineService
	issuer     *auth.TokenIssuer
	verifier   auth.Verifier
	refreshTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// AuthServiceOption is a functional option for AuthService
type AuthServiceOption func(*AuthService)

// AuthWithUserRepository sets the user repository
func AuthWithUserRepository(repo *repository.UserRepository) AuthServiceOption {
	return func(s *AuthService) {
		s.userRepo = repo
	}
}

// AuthWithTokenRepository sets the refresh token repository
func AuthWithTokenRepository(repo *repository.TokenRepository) AuthServiceOption {
	return func(s *AuthService) {
		s.tokenRepo = repo
	}
}

// AuthWithChecklistService sets the service that seeds the checklist at sign-up
func AuthWithChecklistService(cs *ChecklistService) AuthServiceOption {
	return func(s *AuthService) {
		s.checklist = cs
	}
}

// AuthWithTimelineService sets the service that seeds the timeline at sign-up
func AuthWithTimelineService(ts *TimelineService) AuthServiceOption {
	return func(s *AuthService) {
		s.timeline = ts
	}
}

// AuthWithTokenIssuer sets the access token issuer
func AuthWithTokenIssuer(issuer *auth.TokenIssuer) AuthServiceOption {
	return func(s *AuthService) {
		s.issuer = issuer
	}
}

// AuthWithVerifier sets the verifier for bearer tokens. Defaults to the issuer.
func AuthWithVerifier(v auth.Verifier) AuthServiceOption {
	return func(s *AuthService) {
		s.verifier = v
	}
}

// AuthWithRefreshTTL sets the refresh token lifetime
func AuthWithRefreshTTL(ttl time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		s.refreshTTL = ttl
	}
}

// AuthWithLogger sets the logger
func AuthWithLogger(logger *slog.Logger) AuthServiceOption {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// NewAuthService creates a new auth service
func NewAuthService(opts ...AuthServiceOption) *AuthService {
	s := &AuthService{
		refreshTTL: 30 * 24 * time.Hour,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verifier == nil && s.issuer != nil {
		s.verifier = s.issuer
	}
	s.logger = s.logger.With(slog.String("component", "auth_service"))
	return s
}

// SignUpRequest represents a request to create an account
type SignUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	VisaCategory string `json:"visa_category"`
}

// SignUpResult represents the result of creating an account
type SignUpResult struct {
	User *models.User
}

// SignUp creates a user with default case fields and seeds the timeline and checklist
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	if s.userRepo == nil {
		return nil, errors.New("user repository not set")
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	visa, ok := models.ParseVisaCategory(req.VisaCategory)
	if !ok {
		return nil, ErrInvalidVisaCategory
	}
	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, ErrWeakPassword
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		VisaCategory: visa,
		CaseStatus:   models.DefaultCaseStatus,
		RFERisk:      models.DefaultRFERisk,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	if err := s.seed(ctx, user); err != nil {
		return nil, fmt.Errorf("seed new account: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("user_id", user.ID.String()),
		slog.String("visa_category", string(visa)),
	)
	return &SignUpResult{User: user.Public()}, nil
}

func (s *AuthService) seed(ctx context.Context, user *models.User) error {
	if s.timeline != nil {
		seeds := []AppendTimelineRequest{
			{
				UserID:      user.ID,
				Title:       "Account Created",
				Description: "Welcome to VisaMate",
				Type:        models.TimelineAccount,
			},
			{
				UserID:      user.ID,
				Title:       "Visa Category Selected",
				Description: fmt.Sprintf("Selected %s", user.VisaCategory),
				Type:        models.TimelineVisa,
			},
		}
		for _, req := range seeds {
			if _, err := s.timeline.Append(ctx, req); err != nil {
				return err
			}
		}
	}
	if s.checklist != nil {
		if _, err := s.checklist.Reset(ctx, user.ID, user.VisaCategory); err != nil {
			return err
		}
	}
	return nil
}

// SignInRequest represents a password sign-in
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResult carries the issued session and the user's profile
type SignInResult struct {
	Session models.Session
	User    *models.User
}

// SignIn verifies credentials and issues a session
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	if s.userRepo == nil {
		return nil, errors.New("user repository not set")
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: *session, User: user.Public()}, nil
}

// RefreshRequest carries a refresh token to rotate
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token: the old one is revoked and a new session issued
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*SignInResult, error) {
	if s.tokenRepo == nil || s.userRepo == nil {
		return nil, errors.New("token or user repository not set")
	}
	if req.RefreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	hash := auth.HashRefreshToken(req.RefreshToken)
	record, err := s.tokenRepo.Get(ctx, hash)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	if record.Revoked || record.Expired(s.now()) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, record.UserID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.tokenRepo.Revoke(ctx, hash); err != nil {
		return nil, err
	}
	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: *session, User: user.Public()}, nil
}

// SignOutRequest revokes the caller's refresh token
type SignOutRequest struct {
	UserID       uuid.UUID
	RefreshToken string
}

// SignOut revokes a refresh token owned by the user. Unknown tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, req SignOutRequest) error {
	if s.tokenRepo == nil {
		return errors.New("token repository not set")
	}
	if req.RefreshToken == "" {
		return nil
	}

	hash := auth.HashRefreshToken(req.RefreshToken)
	record, err := s.tokenRepo.Get(ctx, hash)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.UserID != req.UserID {
		return ErrUnauthorized
	}
	return s.tokenRepo.Revoke(ctx, hash)
}

// Authenticate verifies a bearer token and returns the user id it names
func (s *AuthService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if s.verifier == nil {
		return uuid.Nil, errors.New("token verifier not set")
	}
	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	return id, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	if s.issuer == nil || s.tokenRepo == nil {
		return nil, errors.New("token issuer or repository not set")
	}

	access, expiresAt, err := s.issuer.Issue(userID)
	if err != nil {
		return nil, err
	}
	raw, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = s.tokenRepo.Create(ctx, &models.RefreshToken{
		Hash:      hash,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &models.Session{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    expiresAt,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
