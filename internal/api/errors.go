package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/questboard-api/internal/api/shared"
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/service"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/auth"
	"github.com/phrazzld/questboard-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, assignment.ErrNotOwner),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflicting task state
	case errors.Is(err, assignment.ErrAlreadyOwnedByOther),
		errors.Is(err, assignment.ErrNotClaimed),
		errors.Is(err, assignment.ErrAlreadyCompleted),
		errors.Is(err, store.ErrLoginExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidRank),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrInviteInvalid):
		return http.StatusBadRequest

	// Transient
	case errors.Is(err, store.ErrPoolExhausted):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verr *domain.ValidationError
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid login or password"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, assignment.ErrNotOwner):
		return "Task is not claimed by you"
	case errors.Is(err, service.ErrForbidden):
		return "Administrator access required"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, assignment.ErrAlreadyOwnedByOther):
		return "Task is already claimed"
	case errors.Is(err, assignment.ErrNotClaimed):
		return "Task is not claimed"
	case errors.Is(err, assignment.ErrAlreadyCompleted):
		return "Task is already completed"
	case errors.Is(err, store.ErrLoginExists):
		return "Login already exists"

	case errors.Is(err, service.ErrInviteInvalid):
		return "Invite is invalid or already used"
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid %s: %s", verr.Field, verr.Message)
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidRank),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, store.ErrPoolExhausted):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err using the mapped status code.
// A non-empty fallback replaces the generic message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	switch {
	case status == http.StatusServiceUnavailable:
		opts = append(opts, shared.WithRetryAfter("1"))
	case errors.Is(err, service.ErrInvalidCredentials):
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "gte":
		return "too small"
	case "dive":
		return "invalid element"
	default:
		return "validation failed"
	}
}
