package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// PostgresCompletionStore implements the store.CompletionStore interface
// over the completed_tasks table.
type PostgresCompletionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCompletionStore creates a new PostgreSQL implementation of the CompletionStore interface.
func NewPostgresCompletionStore(db store.DBTX, logger *slog.Logger) *PostgresCompletionStore {
	if db == nil {
		// ALLOW-PANIC: constructor misuse
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCompletionStore{
		db:     db,
		logger: logger.With(slog.String("component", "completion_store")),
	}
}

// Ensure PostgresCompletionStore implements store.CompletionStore interface
var _ store.CompletionStore = (*PostgresCompletionStore)(nil)

// WithTx implements store.CompletionStore.WithTx.
func (s *PostgresCompletionStore) WithTx(tx *sql.Tx) store.CompletionStore {
	return &PostgresCompletionStore{db: tx, logger: s.logger}
}

// Insert implements store.CompletionStore.Insert
// Both the (user_id, task_id) primary key and the task_id unique constraint
// surface as ErrCompletionExists.
func (s *PostgresCompletionStore) Insert(ctx context.Context, userID, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completed_tasks (user_id, task_id) VALUES ($1, $2)`,
		userID, taskID)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("completion already recorded",
				slog.Int64("task_id", taskID),
				slog.Int64("user_id", userID))
			return store.ErrCompletionExists
		}
		if IsForeignKeyViolation(err) {
			return store.NewStoreError("completion", "insert", "task or user missing", MapError(err))
		}
		log.Error("failed to insert completion",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.Int64("user_id", userID))
		return storeError("completion", "insert", err)
	}
	return nil
}

// CountByUser implements store.CompletionStore.CountByUser
func (s *PostgresCompletionStore) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completed_tasks WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, storeError("completion", "count", err)
	}
	return n, nil
}

// AverageComplexity implements store.CompletionStore.AverageComplexity
func (s *PostgresCompletionStore) AverageComplexity(ctx context.Context, userID int64) (float64, bool, error) {
	return s.average(ctx, "t.complexity", userID)
}

// AverageExpectedTime implements store.CompletionStore.AverageExpectedTime
func (s *PostgresCompletionStore) AverageExpectedTime(ctx context.Context, userID int64) (float64, bool, error) {
	return s.average(ctx, "t.expected_time", userID)
}

// average aggregates column over the tasks joined to the user's completions.
// column is always a compile-time constant from this file.
func (s *PostgresCompletionStore) average(ctx context.Context, column string, userID int64) (float64, bool, error) {
	query := `
		SELECT AVG(` + column + `)::double precision
		FROM completed_tasks c
		JOIN tasks t ON t.id = c.task_id
		WHERE c.user_id = $1
	`
	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&avg); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to average completions",
			slog.String("column", column),
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return 0, false, storeError("completion", "average", err)
	}
	return avg.Float64, avg.Valid, nil
}

// CalibrationCandidates implements store.CompletionStore.CalibrationCandidates
func (s *PostgresCompletionStore) CalibrationCandidates(ctx context.Context, cadence int) ([]int64, error) {
	query := `
		SELECT user_id
		FROM completed_tasks
		GROUP BY user_id
		HAVING COUNT(*) % $1 = 0
		ORDER BY user_id
	`
	rows, err := s.db.QueryContext(ctx, query, cadence)
	if err != nil {
		return nil, storeError("completion", "candidates", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeError("completion", "candidates", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("completion", "candidates", err)
	}
	return ids, nil
}
