//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/postgres"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/calibration"
	"github.com/phrazzld/questboard-api/internal/service/completion"
	"github.com/phrazzld/questboard-api/internal/store"
	"github.com/phrazzld/questboard-api/internal/testdb"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, ctx context.Context, users store.UserStore, login string) *domain.User {
	t.Helper()
	user := &domain.User{Login: login, Name: login, HashedPassword: "hash", Class: domain.RankC}
	require.NoError(t, users.Create(ctx, user))
	return user
}

func createTestTask(t *testing.T, ctx context.Context, tasks store.TaskStore, rank domain.Rank, tags ...string) *domain.Task {
	t.Helper()
	task := &domain.Task{Complexity: rank, Description: "quest", ExpectedTime: 2, Tags: tags}
	require.NoError(t, tasks.Create(ctx, task))
	return task
}

func TestStores_Integration(t *testing.T) {
	db := testdb.OpenTestDB(t)
	testdb.ResetTables(t, db)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		tasks := postgres.NewPostgresTaskStore(tx, nil)
		users := postgres.NewPostgresUserStore(tx, nil)
		completions := postgres.NewPostgresCompletionStore(tx, nil)

		alice := createTestUser(t, ctx, users, "alice")
		bob := createTestUser(t, ctx, users, "bob")

		t.Run("duplicate login", func(t *testing.T) {
			err := users.Create(ctx, &domain.User{Login: "alice", Name: "x", HashedPassword: "h"})
			assert.ErrorIs(t, err, store.ErrLoginExists)
		})

		free := createTestTask(t, ctx, tasks, domain.RankC, "sql")
		claimed := createTestTask(t, ctx, tasks, domain.RankB, "go", "sql")
		done := createTestTask(t, ctx, tasks, domain.RankA, "go")

		applied, err := tasks.ClaimIfUnowned(ctx, claimed.ID, alice.ID)
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = tasks.ClaimIfUnowned(ctx, done.ID, bob.ID)
		require.NoError(t, err)
		require.True(t, applied)
		require.NoError(t, completions.Insert(ctx, bob.ID, done.ID))

		t.Run("availability invariant", func(t *testing.T) {
			available, err := store.Collect(tasks.Available(ctx))
			require.NoError(t, err)
			require.Len(t, available, 1)
			assert.Equal(t, free.ID, available[0].ID)

			inProgress, err := store.Collect(tasks.Assigned(ctx, bob.ID))
			require.NoError(t, err)
			assert.Empty(t, inProgress, "completed tasks leave the in-progress view")

			inProgress, err = store.Collect(tasks.Assigned(ctx, alice.ID))
			require.NoError(t, err)
			require.Len(t, inProgress, 1)
			assert.Equal(t, claimed.ID, inProgress[0].ID)
		})

		t.Run("conditional updates", func(t *testing.T) {
			applied, err := tasks.ClaimIfUnowned(ctx, claimed.ID, bob.ID)
			require.NoError(t, err)
			assert.False(t, applied, "owned by someone else")

			applied, err = tasks.ClaimIfUnowned(ctx, claimed.ID, alice.ID)
			require.NoError(t, err)
			assert.True(t, applied, "re-claim by owner")

			applied, err = tasks.ReleaseIfOwnedBy(ctx, claimed.ID, bob.ID)
			require.NoError(t, err)
			assert.False(t, applied)

			applied, err = tasks.ReleaseIfOwnedBy(ctx, done.ID, bob.ID)
			require.NoError(t, err)
			assert.False(t, applied, "completed tasks cannot be released")

			applied, err = tasks.ClaimIfUnowned(ctx, done.ID, bob.ID)
			require.NoError(t, err)
			assert.False(t, applied, "completed tasks cannot be claimed")
		})

		t.Run("state lookups", func(t *testing.T) {
			state, err := tasks.State(ctx, done.ID)
			require.NoError(t, err)
			assert.True(t, state.Completed)
			assert.Equal(t, bob.ID, *state.CompletedBy)

			_, err = tasks.State(ctx, 1<<40)
			assert.ErrorIs(t, err, store.ErrTaskNotFound)

			_, assigned, err := tasks.GetAssignedTo(ctx, free.ID)
			require.NoError(t, err)
			assert.False(t, assigned)

			_, _, err = tasks.GetAssignedTo(ctx, 1<<40)
			assert.ErrorIs(t, err, store.ErrTaskNotFound)

			tags, err := tasks.GetTags(ctx, claimed.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"go", "sql"}, tags)
		})

		t.Run("completion uniqueness", func(t *testing.T) {
			assert.ErrorIs(t, completions.Insert(ctx, bob.ID, done.ID), store.ErrCompletionExists)
		})

		t.Run("averages join tasks", func(t *testing.T) {
			avg, ok, err := completions.AverageComplexity(ctx, bob.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.InDelta(t, 2.0, avg, 1e-9)

			_, ok, err = completions.AverageExpectedTime(ctx, alice.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			n, err := completions.CountByUser(ctx, bob.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})

		t.Run("tag union never shrinks", func(t *testing.T) {
			tags, err := users.UnionTags(ctx, alice.ID, []string{"sql", "go"})
			require.NoError(t, err)
			assert.Equal(t, []string{"go", "sql"}, tags)

			tags, err = users.UnionTags(ctx, alice.ID, []string{"go", "docker"})
			require.NoError(t, err)
			assert.Equal(t, []string{"docker", "go", "sql"}, tags)

			_, err = users.UnionTags(ctx, 1<<40, []string{"x"})
			assert.ErrorIs(t, err, store.ErrUserNotFound)
		})

		t.Run("leaderboard", func(t *testing.T) {
			top, err := users.TopPlayers(ctx, 10)
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, bob.ID, top[0].UserID)
			assert.Equal(t, int64(1), top[0].Completed)

			require.NoError(t, users.SetClass(ctx, alice.ID, domain.RankB))
			byClass, err := users.TopPlayersByClass(ctx, domain.RankB, 10)
			require.NoError(t, err)
			require.Len(t, byClass, 1)
			assert.Equal(t, alice.ID, byClass[0].UserID)
		})

		t.Run("delete keeps completion facts", func(t *testing.T) {
			assert.ErrorIs(t, tasks.Delete(ctx, done.ID), store.ErrTaskCompleted)

			n, err := completions.CountByUser(ctx, bob.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			require.NoError(t, tasks.Delete(ctx, free.ID))
			assert.ErrorIs(t, tasks.Delete(ctx, free.ID), store.ErrTaskNotFound)
		})
	})
}

func TestInviteStore_Integration(t *testing.T) {
	db := testdb.OpenTestDB(t)
	testdb.ResetTables(t, db)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		invites := postgres.NewPostgresInviteStore(tx, nil)

		_, err := invites.Create(ctx, "01HZX")
		require.NoError(t, err)

		_, err = invites.Create(ctx, "01HZX")
		assert.ErrorIs(t, err, store.ErrInviteExists)

		applied, err := invites.ExpireIfActive(ctx, "01HZX")
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = invites.ExpireIfActive(ctx, "01HZX")
		require.NoError(t, err)
		assert.False(t, applied, "an invite admits one signup")

		_, err = invites.Get(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrInviteNotFound)
	})
}

// TestExclusiveClaim_Integration races many users for one task on committed
// data; exactly one claim applies.
func TestExclusiveClaim_Integration(t *testing.T) {
	db := testdb.OpenTestDB(t)
	testdb.ResetTables(t, db)
	t.Cleanup(func() { testdb.ResetTables(t, db) })

	ctx := context.Background()
	tasks := postgres.NewPostgresTaskStore(db, nil)
	users := postgres.NewPostgresUserStore(db, nil)

	task := createTestTask(t, ctx, tasks, domain.RankB, "go")

	const claimers = 8
	ids := make([]int64, claimers)
	for i := range ids {
		ids[i] = createTestUser(t, ctx, users, fmt.Sprintf("racer-%d", i)).ID
	}

	results := make([]bool, claimers)
	var wg conc.WaitGroup
	for i, id := range ids {
		wg.Go(func() {
			applied, err := tasks.ClaimIfUnowned(ctx, task.ID, id)
			assert.NoError(t, err)
			results[i] = applied
		})
	}
	wg.Wait()

	winners := 0
	for _, applied := range results {
		if applied {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

// TestCompleteRacesRelease_Integration runs the owner's completion and
// release of the same task concurrently. Exactly one of them wins and the
// loser fails with a state violation.
func TestCompleteRacesRelease_Integration(t *testing.T) {
	db := testdb.OpenTestDB(t)
	testdb.ResetTables(t, db)
	t.Cleanup(func() { testdb.ResetTables(t, db) })

	ctx := context.Background()
	tasks := postgres.NewPostgresTaskStore(db, nil)
	users := postgres.NewPostgresUserStore(db, nil)
	tx := postgres.NewTransactor(db, store.TxOptions{
		AcquireTimeout: 5 * time.Second,
		Isolation:      sql.LevelReadCommitted,
	}, nil)
	manager := assignment.NewManager(tx, nil)
	processor := completion.NewProcessor(tx, calibration.NewCalibrator(tx, nil), nil)

	owner := createTestUser(t, ctx, users, "racer")

	const rounds = 20
	for i := range rounds {
		task := createTestTask(t, ctx, tasks, domain.RankB, "go")
		require.NoError(t, manager.Claim(ctx, task.ID, owner.ID))

		var completeErr, releaseErr error
		var wg conc.WaitGroup
		wg.Go(func() { _, completeErr = processor.Complete(ctx, task.ID, owner.ID) })
		wg.Go(func() { releaseErr = manager.Release(ctx, task.ID, owner.ID) })
		wg.Wait()

		state, err := tasks.State(ctx, task.ID)
		require.NoError(t, err)

		if completeErr == nil {
			assert.ErrorIs(t, releaseErr, assignment.ErrAlreadyCompleted, "round %d", i)
			assert.True(t, state.Completed)
			assert.True(t, state.OwnedBy(owner.ID), "round %d: a finished task keeps its owner", i)
		} else {
			assert.ErrorIs(t, completeErr, assignment.ErrNotOwner, "round %d", i)
			assert.NoError(t, releaseErr)
			assert.False(t, state.Completed)
			assert.Nil(t, state.Owner)
		}
	}
}

func TestTransactorSavepoint_Integration(t *testing.T) {
	db := testdb.OpenTestDB(t)
	testdb.ResetTables(t, db)
	t.Cleanup(func() { testdb.ResetTables(t, db) })

	ctx := context.Background()
	tx := postgres.NewTransactor(db, store.TxOptions{}, nil)
	user := createTestUser(t, ctx, postgres.NewPostgresUserStore(db, nil), "saver")

	errCalibration := errors.New("calibration failed")
	err := tx.RunInTx(ctx, func(ctx context.Context, scope store.TxScope) error {
		if _, err := scope.Users().UnionTags(ctx, user.ID, []string{"kept"}); err != nil {
			return err
		}
		spErr := scope.Savepoint(ctx, "calibration", func(ctx context.Context) error {
			if err := scope.Users().SetClass(ctx, user.ID, domain.RankA); err != nil {
				return err
			}
			return errCalibration
		})
		assert.ErrorIs(t, spErr, errCalibration)
		return nil
	})
	require.NoError(t, err)

	got, err := postgres.NewPostgresUserStore(db, nil).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, got.Tags, "outer writes commit")
	assert.Equal(t, domain.RankC, got.Class, "savepoint writes are discarded")
}
