// Package middleware holds the gin middleware for API-key and bearer
// gating, request logging, Prometheus metrics and CORS.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"visamate-backend/httpx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// APIKeyHeader carries the public key on unauthenticated routes
	APIKeyHeader = "apikey"

	userIDKey = "visamate.user_id"
	tokenKey  = "visamate.token"
)

// Authenticator resolves a bearer token to a user id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// APIKey requires the public key in the apikey header or as a bearer token
func APIKey(publicKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			key = BearerToken(c.Request)
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(publicKey)) != 1 {
			httpx.Abort(c, http.StatusUnauthorized, "INVALID_API_KEY", "A valid API key is required")
			return
		}
		c.Next()
	}
}

// Bearer requires a valid access token and stores the user id in the context
func Bearer(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			httpx.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}
		userID, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			httpx.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}
		c.Set(userIDKey, userID)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// OptionalBearer stores the user id when a valid token is present and never rejects
func OptionalBearer(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c.Request); token != "" {
			if userID, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(userIDKey, userID)
				c.Set(tokenKey, token)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by Bearer or OptionalBearer
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
