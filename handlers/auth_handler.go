package handlers

import (
	"errors"
	"io"
	"net/http"

	"visamate-backend/middleware"
	"visamate-backend/models"
	"visamate-backend/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles sign-up, sign-in and token endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// sessionResponse is the body of a successful sign-in or refresh
type sessionResponse struct {
	Success bool           `json:"success"`
	Session models.Session `json:"session"`
	User    *models.User   `json:"user"`
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req service.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	result, err := h.authService.SignUp(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    result.User,
	})
}

// SignIn handles POST /auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req service.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	result, err := h.authService.SignIn(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Success: true, Session: result.Session, User: result.User})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req service.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Success: true, Session: result.Session, User: result.User})
}

// SignOut handles POST /auth/signout. The body may carry the refresh token to revoke.
func (h *AuthHandler) SignOut(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req service.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		invalidBody(c, err)
		return
	}

	err := h.authService.SignOut(c.Request.Context(), service.SignOutRequest{
		UserID:       userID,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
