package store

import (
	"context"
	"database/sql"
)

// CompletionStore defines the interface for the append-only completion facts.
type CompletionStore interface {
	// Insert records that userID finished taskID.
	// Returns ErrCompletionExists if the task already has a completion fact.
	Insert(ctx context.Context, userID, taskID int64) error

	// CountByUser returns the number of tasks userID has completed.
	CountByUser(ctx context.Context, userID int64) (int64, error)

	// AverageComplexity returns the mean complexity encoding of the tasks
	// userID has completed; ok is false when there are none.
	AverageComplexity(ctx context.Context, userID int64) (avg float64, ok bool, err error)

	// AverageExpectedTime returns the mean expected time in hours of the
	// tasks userID has completed; ok is false when there are none.
	AverageExpectedTime(ctx context.Context, userID int64) (avg float64, ok bool, err error)

	// CalibrationCandidates lists users whose completion count is a positive
	// multiple of the calibration cadence.
	CalibrationCandidates(ctx context.Context, cadence int) ([]int64, error)

	// WithTx returns a CompletionStore bound to the given transaction.
	WithTx(tx *sql.Tx) CompletionStore
}
