package handlers

import (
	"context"
	"net/http"
	"time"

	"visamate-backend/httpx"
	"visamate-backend/middleware"

	"github.com/gin-gonic/gin"
)

// Pinger is anything whose reachability the health check reports
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and diagnostic endpoints
type HealthHandler struct {
	store   Pinger
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		_ = c.Error(err)
		httpx.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Key-value store unreachable")
		return
	}
	httpx.OK(c, http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Test handles GET /test, echoing what the server saw
func (h *HealthHandler) Test(c *gin.Context) {
	data := gin.H{
		"method":         c.Request.Method,
		"has_auth":       c.GetHeader("Authorization") != "",
		"has_api_key":    c.GetHeader(middleware.APIKeyHeader) != "",
		"authenticated":  false,
		"server_time":    time.Now().UTC(),
		"server_version": h.version,
	}
	if id, ok := middleware.UserID(c); ok {
		data["authenticated"] = true
		data["user_id"] = id
	}
	httpx.OK(c, http.StatusOK, data)
}
