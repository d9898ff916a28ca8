package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrUserNotFound, ErrTaskNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a user with the same login).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or violates a constraint while being stored.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrPoolExhausted is returned when no pooled connection became available
	// within the configured acquisition timeout. It is transient and the
	// caller may retry with backoff.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrUserNotFound indicates that the requested user does not exist in the store.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrInviteNotFound indicates that the invite token does not exist in the store.
	ErrInviteNotFound = fmt.Errorf("%w: invite", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrLoginExists indicates that a user with the given login already exists.
	ErrLoginExists = fmt.Errorf("%w: login", ErrDuplicate)

	// ErrCompletionExists indicates that the task already has a completion fact.
	ErrCompletionExists = fmt.Errorf("%w: completion", ErrDuplicate)

	// ErrInviteExists indicates that the invite token was already issued.
	ErrInviteExists = fmt.Errorf("%w: invite", ErrDuplicate)

	// ErrTaskCompleted indicates that a task has a completion fact and can no
	// longer be removed.
	ErrTaskCompleted = errors.New("task has a completion fact")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsRetryable reports whether the caller may retry the operation later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "user")
	Operation string // The operation that failed (e.g., "create", "claim")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
