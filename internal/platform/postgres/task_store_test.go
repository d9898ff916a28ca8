package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/postgres"
	"github.com/phrazzld/questboard-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskRowColumns = []string{"id", "complexity", "description", "expected_time", "tags", "assigned_to", "created_at"}

func newMockTaskStore(t *testing.T) (*postgres.PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return postgres.NewPostgresTaskStore(db, nil), mock
}

func TestPostgresTaskStore_ClaimIfUnowned(t *testing.T) {
	t.Parallel()

	claim := regexp.QuoteMeta("UPDATE tasks t")

	t.Run("applied", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(claim).WithArgs(int64(1), int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := s.ClaimIfUnowned(context.Background(), 1, 7)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not applied", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(claim).WithArgs(int64(1), int64(8)).WillReturnResult(sqlmock.NewResult(0, 0))

		applied, err := s.ClaimIfUnowned(context.Background(), 1, 8)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(claim).WillReturnError(errors.New("connection reset"))

		_, err := s.ClaimIfUnowned(context.Background(), 1, 8)
		var storeErr *store.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "claim", storeErr.Operation)
	})
}

func TestPostgresTaskStore_GetAssignedTo(t *testing.T) {
	t.Parallel()

	query := regexp.QuoteMeta("SELECT assigned_to FROM tasks WHERE id = $1")

	t.Run("owned", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(query).WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"assigned_to"}).AddRow(int64(9)))

		owner, assigned, err := s.GetAssignedTo(context.Background(), 3)
		require.NoError(t, err)
		assert.True(t, assigned)
		assert.Equal(t, int64(9), owner)
	})

	t.Run("unowned is distinct from missing", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(query).WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"assigned_to"}).AddRow(nil))

		_, assigned, err := s.GetAssignedTo(context.Background(), 3)
		require.NoError(t, err)
		assert.False(t, assigned)
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(query).WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"assigned_to"}))

		_, _, err := s.GetAssignedTo(context.Background(), 4)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStore_AvailableIsRestartable(t *testing.T) {
	t.Parallel()

	s, mock := newMockTaskStore(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("FROM tasks t")

	for range 2 {
		mock.ExpectQuery(query).WillReturnRows(
			sqlmock.NewRows(taskRowColumns).
				AddRow(int64(1), int64(0), "write docs", 2.0, "{docs}", nil, created).
				AddRow(int64(2), int64(2), "shard db", 9.0, "{go,sql}", nil, created),
		)
	}

	seq := s.Available(context.Background())

	first, err := store.Collect(seq)
	require.NoError(t, err)
	second, err := store.Collect(seq)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second, "ranging twice re-runs the query")
	assert.Equal(t, domain.RankA, first[1].Complexity)
	assert.Equal(t, []string{"go", "sql"}, first[1].Tags)
	assert.Nil(t, first[0].AssignedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_AvailableStopsEarly(t *testing.T) {
	t.Parallel()

	s, mock := newMockTaskStore(t)
	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks t")).WillReturnRows(
		sqlmock.NewRows(taskRowColumns).
			AddRow(int64(1), int64(0), "a", 1.0, "{}", nil, created).
			AddRow(int64(2), int64(0), "b", 1.0, "{}", nil, created),
	)

	var seen []int64
	for task, err := range s.Available(context.Background()) {
		require.NoError(t, err)
		seen = append(seen, task.ID)
		break
	}
	assert.Equal(t, []int64{1}, seen)
}

func TestPostgresTaskStore_State(t *testing.T) {
	t.Parallel()

	s, mock := newMockTaskStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF t")).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_to", "user_id"}).AddRow(int64(2), int64(2)))

	state, err := s.LockState(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, state.Completed)
	assert.True(t, state.OwnedBy(2))
	require.NotNil(t, state.CompletedBy)
	assert.Equal(t, int64(2), *state.CompletedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_CreateRejectsInvalid(t *testing.T) {
	t.Parallel()

	s, mock := newMockTaskStore(t)
	err := s.Create(context.Background(), &domain.Task{Complexity: domain.Rank(4), Description: "x"})

	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement is sent for invalid input")
}

func TestPostgresTaskStore_Delete(t *testing.T) {
	t.Parallel()

	del := regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")

	t.Run("deleted", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(del).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Delete(context.Background(), 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(del).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Delete(context.Background(), 3), store.ErrTaskNotFound)
	})

	t.Run("completed task is restricted", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(del).WithArgs(int64(3)).WillReturnError(newPgError("23503"))

		err := s.Delete(context.Background(), 3)
		assert.ErrorIs(t, err, store.ErrTaskCompleted)
		assert.NotErrorIs(t, err, store.ErrTaskNotFound)
	})
}
