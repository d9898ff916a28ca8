package store

import (
	"context"
	"database/sql"
	"iter"

	"github.com/phrazzld/questboard-api/internal/domain"
)

// TaskStore defines the interface for task persistence.
//
// Point lookups report a missing task as ErrTaskNotFound and never as a zero
// value, so "task has no owner" and "task does not exist" stay distinct.
type TaskStore interface {
	// Create saves a new task and assigns its ID and CreatedAt.
	// Constraint violations are returned as ErrInvalidEntity.
	Create(ctx context.Context, task *domain.Task) error

	// Delete removes a task that has not been completed.
	// Returns ErrTaskNotFound if the task does not exist and ErrTaskCompleted
	// if it has a completion fact, which is never removed.
	Delete(ctx context.Context, id int64) error

	// GetByID retrieves a task by its ID.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// GetTags returns the normalized tag set of a task.
	GetTags(ctx context.Context, id int64) ([]string, error)

	// GetAssignedTo returns the owner of a task. assigned is false for a
	// claimable task that exists.
	GetAssignedTo(ctx context.Context, id int64) (owner int64, assigned bool, err error)

	// Available yields tasks that are unowned and have no completion fact,
	// in creation order. Each range over the sequence re-runs the query.
	Available(ctx context.Context) iter.Seq2[*domain.Task, error]

	// Assigned yields tasks owned by userID that are not completed, in
	// creation order.
	Assigned(ctx context.Context, userID int64) iter.Seq2[*domain.Task, error]

	// State reads ownership and completion of a task in one statement.
	State(ctx context.Context, id int64) (domain.TaskState, error)

	// LockState is State plus a row lock held until the surrounding
	// transaction ends. Outside a transaction it behaves like State.
	LockState(ctx context.Context, id int64) (domain.TaskState, error)

	// ClaimIfUnowned sets the owner to userID only if the task is unowned or
	// already owned by userID, and not completed. It reports whether the
	// update applied.
	ClaimIfUnowned(ctx context.Context, taskID, userID int64) (bool, error)

	// ReleaseIfOwnedBy clears the owner only if it is userID and the task is
	// not completed. It reports whether the update applied.
	ReleaseIfOwnedBy(ctx context.Context, taskID, userID int64) (bool, error)

	// WithTx returns a TaskStore bound to the given transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// Collect drains a sequence produced by Available or Assigned into a slice,
// stopping at the first error.
func Collect(seq iter.Seq2[*domain.Task, error]) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0)
	for task, err := range seq {
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
