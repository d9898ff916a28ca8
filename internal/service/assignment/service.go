// Package assignment enforces exclusive ownership of tasks: a task moves
// from Unclaimed to Claimed(user) and back, and every transition is a single
// conditional update whose outcome is classified only after it failed.
package assignment

import (
	"context"
	"errors"
	"fmt"
)

// Manager claims and releases tasks on behalf of users.
type Manager interface {
	// Claim transitions a task from Unclaimed to Claimed(userID).
	//
	// Re-claiming a task the caller already owns succeeds without change.
	//
	// Returns:
	//   - store.ErrTaskNotFound if the task does not exist
	//   - ErrAlreadyCompleted if the task has a completion fact
	//   - ErrAlreadyOwnedByOther if another user holds it
	//   - store.ErrPoolExhausted if no database connection freed up in time
	Claim(ctx context.Context, taskID, userID int64) error

	// Release transitions a task from Claimed(userID) back to Unclaimed.
	//
	// Returns:
	//   - store.ErrTaskNotFound if the task does not exist
	//   - ErrAlreadyCompleted if the task has a completion fact
	//   - ErrNotClaimed if nobody holds the task
	//   - ErrNotOwner if another user holds it
	Release(ctx context.Context, taskID, userID int64) error
}

// State machine violations. They are returned verbatim and never retried.
var (
	// ErrAlreadyOwnedByOther indicates the task is claimed by a different user.
	ErrAlreadyOwnedByOther = errors.New("task is already claimed by another user")

	// ErrNotOwner indicates the caller does not hold the task.
	ErrNotOwner = errors.New("task is not claimed by this user")

	// ErrNotClaimed indicates the task has no owner to release.
	ErrNotClaimed = errors.New("task is not claimed")

	// ErrAlreadyCompleted indicates the task already has a completion fact.
	ErrAlreadyCompleted = errors.New("task is already completed")
)

// IsStateViolation reports whether err is one of the state machine sentinels.
func IsStateViolation(err error) bool {
	return errors.Is(err, ErrAlreadyOwnedByOther) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrNotClaimed) ||
		errors.Is(err, ErrAlreadyCompleted)
}

// ServiceError wraps unexpected failures with the operation that hit them.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "claim", "release")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a new ServiceError for the given operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
