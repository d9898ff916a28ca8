package postgres

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"log/slog"

	"github.com/lib/pq"
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// notCompleted filters out tasks that have a completion fact.
const notCompleted = `NOT EXISTS (SELECT 1 FROM completed_tasks c WHERE c.task_id = t.id)`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		// ALLOW-PANIC: constructor misuse
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task.Tags = domain.NormalizeTags(task.Tags)
	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create", slog.String("error", err.Error()))
		return store.NewStoreError("task", "create", "validation failed", errors.Join(store.ErrInvalidEntity, err))
	}

	query := `
		INSERT INTO tasks (complexity, description, expected_time, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		int16(task.Complexity),
		task.Description,
		task.ExpectedTime,
		pq.StringArray(task.Tags),
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return storeError("task", "create", err)
	}

	task.AssignedTo = nil
	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("complexity", task.Complexity.String()))
	return nil
}

// Delete implements store.TaskStore.Delete
// The completed_tasks foreign key restricts deletion of finished tasks.
func (s *PostgresTaskStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Debug("refusing to delete completed task", slog.Int64("task_id", id))
			return store.NewStoreError("task", "delete", "task is completed", store.ErrTaskCompleted)
		}
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return storeError("task", "delete", err)
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task not found for deletion", slog.Int64("task_id", id))
			return err
		}
		return storeError("task", "delete", err)
	}

	log.Info("task deleted", slog.Int64("task_id", id))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, storeError("task", "get", err)
	}
	return task, nil
}

// GetTags implements store.TaskStore.GetTags
func (s *PostgresTaskStore) GetTags(ctx context.Context, id int64) ([]string, error) {
	var tags pq.StringArray
	err := s.db.QueryRowContext(ctx, `SELECT tags FROM tasks WHERE id = $1`, id).Scan(&tags)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, storeError("task", "get tags", err)
	}
	return domain.NormalizeTags(tags), nil
}

// GetAssignedTo implements store.TaskStore.GetAssignedTo
func (s *PostgresTaskStore) GetAssignedTo(ctx context.Context, id int64) (int64, bool, error) {
	var owner sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT assigned_to FROM tasks WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, store.ErrTaskNotFound
		}
		return 0, false, storeError("task", "get owner", err)
	}
	return owner.Int64, owner.Valid, nil
}

// Available implements store.TaskStore.Available
func (s *PostgresTaskStore) Available(ctx context.Context) iter.Seq2[*domain.Task, error] {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.assigned_to IS NULL AND ` + notCompleted + `
		ORDER BY t.id
	`
	return s.list(ctx, "available", query)
}

// Assigned implements store.TaskStore.Assigned
func (s *PostgresTaskStore) Assigned(ctx context.Context, userID int64) iter.Seq2[*domain.Task, error] {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.assigned_to = $1 AND ` + notCompleted + `
		ORDER BY t.id
	`
	return s.list(ctx, "assigned", query, userID)
}

func (s *PostgresTaskStore) list(ctx context.Context, op, query string, args ...any) iter.Seq2[*domain.Task, error] {
	seq := querySeq(func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx, query, args...)
	})

	return func(yield func(*domain.Task, error) bool) {
		for task, err := range seq {
			if err != nil {
				logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
					slog.String("list", op),
					slog.String("error", err.Error()))
				yield(nil, storeError("task", "list "+op, err))
				return
			}
			if !yield(task, nil) {
				return
			}
		}
	}
}

// State implements store.TaskStore.State
func (s *PostgresTaskStore) State(ctx context.Context, id int64) (domain.TaskState, error) {
	return s.state(ctx, id, "")
}

// LockState implements store.TaskStore.LockState
// Only the task row is locked; the completion row is on the nullable side of
// the join.
func (s *PostgresTaskStore) LockState(ctx context.Context, id int64) (domain.TaskState, error) {
	return s.state(ctx, id, "FOR UPDATE OF t")
}

func (s *PostgresTaskStore) state(ctx context.Context, id int64, lock string) (domain.TaskState, error) {
	query := `
		SELECT t.assigned_to, c.user_id
		FROM tasks t
		LEFT JOIN completed_tasks c ON c.task_id = t.id
		WHERE t.id = $1
	` + lock

	var owner, completedBy sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&owner, &completedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TaskState{}, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read task state",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return domain.TaskState{}, storeError("task", "state", err)
	}

	var state domain.TaskState
	if owner.Valid {
		v := owner.Int64
		state.Owner = &v
	}
	if completedBy.Valid {
		v := completedBy.Int64
		state.Completed = true
		state.CompletedBy = &v
	}
	return state, nil
}

// ClaimIfUnowned implements store.TaskStore.ClaimIfUnowned
// Concurrent claimers serialize on the row lock taken by the UPDATE, and the
// losers re-evaluate the predicate against the winner's row.
func (s *PostgresTaskStore) ClaimIfUnowned(ctx context.Context, taskID, userID int64) (bool, error) {
	query := `
		UPDATE tasks t
		SET assigned_to = $2
		WHERE t.id = $1
		  AND (t.assigned_to IS NULL OR t.assigned_to = $2)
		  AND ` + notCompleted

	return s.conditionalUpdate(ctx, "claim", query, taskID, userID)
}

// ReleaseIfOwnedBy implements store.TaskStore.ReleaseIfOwnedBy
func (s *PostgresTaskStore) ReleaseIfOwnedBy(ctx context.Context, taskID, userID int64) (bool, error) {
	query := `
		UPDATE tasks t
		SET assigned_to = NULL
		WHERE t.id = $1
		  AND t.assigned_to = $2
		  AND ` + notCompleted

	return s.conditionalUpdate(ctx, "release", query, taskID, userID)
}

func (s *PostgresTaskStore) conditionalUpdate(ctx context.Context, op, query string, taskID, userID int64) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		log.Error("conditional task update failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.Int64("user_id", userID))
		return false, storeError("task", op, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, storeError("task", op, err)
	}

	log.Debug("conditional task update",
		slog.String("operation", op),
		slog.Int64("task_id", taskID),
		slog.Int64("user_id", userID),
		slog.Bool("applied", n == 1))
	return n == 1, nil
}
