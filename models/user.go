package models

import (
	"time"

	"github.com/google/uuid"
)

// Default values applied to a freshly created profile
const (
	DefaultCaseStatus = "Preparing Documents"
	DefaultRFERisk    = 85
)

// User represents an applicant account and its case-tracking fields
type User struct {
	ID            uuid.UUID    `json:"id"`
	Email         string       `json:"email"`
	PasswordHash  string       `json:"password_hash,omitempty"` // stripped by Public()
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	VisaCategory  VisaCategory `json:"visa_category"`
	CaseStatus    string       `json:"case_status"`
	DocumentCount int          `json:"document_count"`
	RFERisk       int          `json:"rfe_risk"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Public returns a copy safe to send to clients
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ProfileUpdate carries a partial profile update. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName    *string       `json:"first_name,omitempty"`
	LastName     *string       `json:"last_name,omitempty"`
	VisaCategory *VisaCategory `json:"visa_category,omitempty"`
	CaseStatus   *string       `json:"case_status,omitempty"`
}

// Empty reports whether the update changes nothing
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.VisaCategory == nil && p.CaseStatus == nil
}
