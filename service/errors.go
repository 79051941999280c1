package service

import "errors"

var (
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
	ErrInvalidVisaCategory = errors.New("invalid visa category")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrItemNotFound        = errors.New("checklist item not found")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrJobNotFound         = errors.New("generation job not found")
	ErrJobCreationFailed   = errors.New("failed to create generation job")
	ErrRefinerUnavailable  = errors.New("document refinement is not configured")
)
