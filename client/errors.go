package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse means the body did not have the expected shape
	ErrMalformedResponse = errors.New("malformed response")
	// ErrServerUnreachable means the health check failed
	ErrServerUnreachable = errors.New("server unreachable")
	// ErrNeedsSignIn is returned by operations that require an authenticated session
	ErrNeedsSignIn = errors.New("sign in required")
)

// TransportError wraps a request that never produced an HTTP response
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Code and Message come from the error
// envelope when the server sent one.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, msg)
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// friendlyMessages maps backend messages to user-facing copy
var friendlyMessages = map[string]string{
	"Invalid login credentials":        "The email or password you entered is incorrect.",
	"User already registered":          "An account with this email already exists. Try signing in instead.",
	"Invalid email address":            "Please enter a valid email address.",
	"Invalid visa category":            "Please choose one of the supported visa categories.",
	"Invalid or expired refresh token": "Your session has expired. Please sign in again.",
	"Invalid or expired token":         "Your session has expired. Please sign in again.",
	"A valid API key is required":      "This app is not configured correctly. Please contact support.",
}

// FriendlyMessage returns text suitable for showing to the user
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var he *HTTPError
	if errors.As(err, &he) {
		if msg, ok := friendlyMessages[he.Message]; ok {
			return msg
		}
		if he.Message != "" {
			return he.Message
		}
		return http.StatusText(he.Status)
	}
	var te *TransportError
	if errors.As(err, &te) {
		return "Unable to reach the server. Check your connection and try again."
	}
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "The server sent an unexpected response. Please try again."
	case errors.Is(err, ErrServerUnreachable):
		return "The server is not responding right now. Please try again later."
	case errors.Is(err, ErrNeedsSignIn):
		return "Please sign in to continue."
	}
	if msg, ok := friendlyMessages[err.Error()]; ok {
		return msg
	}
	return err.Error()
}
