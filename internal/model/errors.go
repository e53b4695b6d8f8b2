// Package model defines the domain model shared across the service.
package model

import "fmt"

// APIError is the unified error format returned to clients.
// It carries a cause category and a suggested action for the UI.
type APIError struct {
	Code     string // error code
	Message  string // human readable message
	Category string // auth, validation, system
	Action   string // what the user can do about it
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Predefined error codes.
const (
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NewEmailTakenError reports a registration attempt with an email that already exists.
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "Email already in use.",
		Category: "auth",
		Action:   "Sign in instead, or register with a different email address.",
	}
}

// NewInvalidCredentialsError reports an unknown email or a wrong password.
// Both cases share one message so callers cannot probe which emails exist.
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Invalid credentials.",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewInvalidRefreshTokenError reports a refresh token that failed verification,
// belongs to no user, or has already been rotated out.
func NewInvalidRefreshTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Invalid refresh token.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewUnauthorizedError reports a missing or invalid access token.
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewInvalidRequestError reports a malformed or incomplete request body.
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Fix the request and try again.",
	}
}

// NewInternalError is the generic error shown for unexpected failures.
// Details are only written to the log.
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again later.",
	}
}
