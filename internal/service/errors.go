package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped with the operation that failed
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrForbidden indicates the actor lacks the admin flag an operation needs.
	// API layer should map this to HTTP 403 Forbidden.
	ErrForbidden = errors.New("operation requires an administrator")

	// ErrInviteInvalid indicates a signup invite does not exist or was used.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInviteInvalid = errors.New("invite token is invalid or already used")

	// ErrInvalidCredentials indicates a login/password pair did not match.
	// The message never says which half was wrong.
	// API layer should map this to HTTP 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid login or password")
)
