package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// Transactor implements store.Transactor on a *sql.DB, handing each
// transaction function stores bound to the same *sql.Tx.
type Transactor struct {
	db          *sql.DB
	opts        store.TxOptions
	tasks       *PostgresTaskStore
	users       *PostgresUserStore
	completions *PostgresCompletionStore
	invites     *PostgresInviteStore
	logger      *slog.Logger
}

// NewTransactor creates a Transactor. opts.AcquireTimeout bounds how long
// each transaction waits for a pooled connection.
func NewTransactor(db *sql.DB, opts store.TxOptions, logger *slog.Logger) *Transactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transactor{
		db:          db,
		opts:        opts,
		tasks:       NewPostgresTaskStore(db, logger),
		users:       NewPostgresUserStore(db, logger),
		completions: NewPostgresCompletionStore(db, logger),
		invites:     NewPostgresInviteStore(db, logger),
		logger:      logger.With(slog.String("component", "transactor")),
	}
}

// Ensure Transactor implements store.Transactor interface
var _ store.Transactor = (*Transactor)(nil)

// RunInTx implements store.Transactor.RunInTx.
func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.TxScope) error) error {
	return store.RunInTransaction(ctx, t.db, t.opts, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &txScope{
			tx:          tx,
			tasks:       t.tasks.WithTx(tx),
			users:       t.users.WithTx(tx),
			completions: t.completions.WithTx(tx),
			invites:     t.invites.WithTx(tx),
			logger:      t.logger,
		})
	})
}

type txScope struct {
	tx          *sql.Tx
	tasks       store.TaskStore
	users       store.UserStore
	completions store.CompletionStore
	invites     store.InviteStore
	logger      *slog.Logger
}

func (s *txScope) Tasks() store.TaskStore             { return s.tasks }
func (s *txScope) Users() store.UserStore             { return s.users }
func (s *txScope) Completions() store.CompletionStore { return s.completions }
func (s *txScope) Invites() store.InviteStore         { return s.invites }

// Savepoint runs fn between SAVEPOINT and RELEASE. On failure the savepoint
// is rolled back so the enclosing transaction can still commit.
func (s *txScope) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	ident := pgx.Identifier{name}.Sanitize()

	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+ident); err != nil {
		return storeError("savepoint", "create", err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+ident); rbErr != nil {
			log.Error("failed to roll back to savepoint",
				slog.String("savepoint", name),
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("rolling back savepoint %s: %v (original error: %w)", name, rbErr, err)
		}
		log.Debug("rolled back to savepoint",
			slog.String("savepoint", name),
			slog.String("error", err.Error()))
		return err
	}

	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+ident); err != nil {
		return storeError("savepoint", "release", err)
	}
	return nil
}
