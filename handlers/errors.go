package handlers

import (
	"errors"
	"net/http"

	"visamate-backend/httpx"
	"visamate-backend/service"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string // empty means use the error text
}

var errorMappings = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid login credentials"},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token"},
	{service.ErrUnauthorized, http.StatusForbidden, "FORBIDDEN", "Not allowed"},
	{service.ErrUserExists, http.StatusConflict, "USER_EXISTS", "User already registered"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address"},
	{service.ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD", ""},
	{service.ErrInvalidVisaCategory, http.StatusBadRequest, "INVALID_VISA_CATEGORY", "Invalid visa category"},
	{service.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", ""},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{service.ErrItemNotFound, http.StatusNotFound, "ITEM_NOT_FOUND", "Checklist item not found"},
	{service.ErrFileNotFound, http.StatusNotFound, "FILE_NOT_FOUND", "File not found"},
	{service.ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found"},
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ""},
	{service.ErrUnsupportedFileType, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", ""},
	{service.ErrRefinerUnavailable, http.StatusServiceUnavailable, "REFINER_UNAVAILABLE", ""},
}

// respondServiceError maps a service error to the JSON error envelope.
// Unknown errors become 500 and are attached to the context for logging.
func respondServiceError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			httpx.Error(c, m.status, m.code, msg)
			return
		}
	}
	_ = c.Error(err)
	httpx.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

func invalidBody(c *gin.Context, err error) {
	httpx.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
}
