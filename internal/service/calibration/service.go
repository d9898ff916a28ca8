// Package calibration recomputes a user's class from the complexity of the
// tasks they have finished. It runs inside the completion transaction and
// from the periodic repair sweep.
package calibration

import (
	"context"
	"fmt"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/store"
)

// Outcome describes what a calibration pass did.
type Outcome struct {
	// Completions is the user's completion count at the time of the pass.
	Completions int64
	// Evaluated is true when the count was a positive multiple of the cadence.
	Evaluated bool
	// Previous is the class the user held before the pass.
	Previous domain.Rank
	// Class is the class the user holds after the pass.
	Class domain.Rank
}

// Changed reports whether the pass wrote a new class.
func (o Outcome) Changed() bool {
	return o.Evaluated && o.Previous != o.Class
}

// Calibrator recalibrates user classes.
type Calibrator interface {
	// Calibrate runs one pass for userID using the stores bound to scope.
	// It writes only when the user is due and the estimate differs.
	Calibrate(ctx context.Context, scope store.TxScope, userID int64) (Outcome, error)

	// Recalibrate runs Calibrate in a transaction of its own.
	Recalibrate(ctx context.Context, userID int64) (Outcome, error)
}

// ServiceError wraps calibration failures with the step that hit them.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "count", "set_class")
	Operation string
	// UserID is the user being calibrated
	UserID int64
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("calibration %s failed for user %d: %v", e.Operation, e.UserID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}
