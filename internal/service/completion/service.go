// Package completion finishes tasks. A completion records the fact, merges
// the task's tags into the user's tag set and, every tenth completion,
// recalibrates the user's class, all in one transaction.
package completion

import (
	"context"
	"fmt"

	"github.com/phrazzld/questboard-api/internal/domain"
)

// Processor completes claimed tasks.
type Processor interface {
	// Complete finishes taskID on behalf of userID, who must hold the claim.
	//
	// The completion fact and the tag merge commit together or not at all.
	// Calibration runs in a nested savepoint; if it fails the failure is
	// logged and the completion still commits.
	//
	// Returns:
	//   - store.ErrTaskNotFound if the task does not exist
	//   - assignment.ErrAlreadyCompleted if the task was already finished
	//   - assignment.ErrNotOwner if the caller does not hold the claim
	//   - store.ErrPoolExhausted if no database connection freed up in time
	Complete(ctx context.Context, taskID, userID int64) (*domain.CompletionResult, error)
}

// ServiceError wraps unexpected completion failures.
type ServiceError struct {
	// Operation is the step that failed (e.g., "insert", "union_tags")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("complete task: %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("complete task: %s: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}
