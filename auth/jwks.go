package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWKSVerifier validates tokens issued by an external identity provider.
// The subject claim must be a VisaMate user id.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
	logger *slog.Logger
}

// NewJWKSVerifier fetches signing keys from jwksURL and refreshes them in the background
func NewJWKSVerifier(jwksURL, issuer string, logger *slog.Logger) (*JWKSVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client: &http.Client{Timeout: 10 * time.Second},
		// start even if the provider is not reachable yet
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("JWKS refresh failed",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}
	return NewJWKSVerifierWithKeyfunc(k, issuer, logger), nil
}

// NewJWKSVerifierWithKeyfunc wraps an existing keyfunc, used by tests
func NewJWKSVerifierWithKeyfunc(k keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{
		jwks:   k,
		issuer: issuer,
		leeway: 30 * time.Second,
		logger: logger.With(slog.String("component", "jwks_verifier")),
	}
}

// Verify validates an RS256 token against the provider's keys
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	if _, err := jwt.ParseWithClaims(token, claims, v.jwks.KeyfuncCtx(ctx), opts...); err != nil {
		v.logger.Debug("JWKS validation failed", slog.String("error", err.Error()))
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return subjectID(claims)
}
