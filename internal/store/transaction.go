package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/questboard-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// It receives the context and a transaction, and returns an error if the operation fails.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// TxOptions controls how RunInTransaction obtains its connection.
type TxOptions struct {
	// AcquireTimeout bounds the wait for a pooled connection. Zero waits as
	// long as ctx allows.
	AcquireTimeout time.Duration

	// Isolation is passed to BeginTx. The zero value is the driver default.
	Isolation sql.IsolationLevel
}

// RunInTransaction executes the given function within a database transaction.
//
// A connection is acquired from the pool first, waiting at most
// opts.AcquireTimeout; if none frees up in time ErrPoolExhausted is returned
// and nothing is started. If fn returns an error the transaction is rolled
// back, otherwise it is committed. Panics roll back and are re-raised.
func RunInTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn TxFn) error {
	// Get logger from context or use default
	log := logger.FromContext(ctx)

	conn, err := acquireConn(ctx, db, opts.AcquireTimeout)
	if err != nil {
		if errors.Is(err, ErrPoolExhausted) {
			log.Warn("no database connection available",
				slog.Duration("acquire_timeout", opts.AcquireTimeout))
		} else {
			log.Error("failed to acquire database connection",
				slog.String("error", err.Error()))
		}
		return err
	}
	defer func() { _ = conn.Close() }()

	// Begin a transaction on the acquired connection
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation})
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	// Set up defer to handle panics and roll back the transaction if needed
	defer func() {
		if p := recover(); p != nil {
			txErr := tx.Rollback()
			if txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	err = fn(ctx, tx)
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	log.Debug("transaction committed successfully")
	return nil
}

// acquireConn takes a dedicated connection from the pool. A wait that runs
// past timeout while the caller's own context is still live means the pool
// is saturated.
func acquireConn(ctx context.Context, db *sql.DB, timeout time.Duration) (*sql.Conn, error) {
	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := db.Conn(acquireCtx)
	if err == nil {
		return conn, nil
	}

	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: waited %s", ErrPoolExhausted, timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: acquire connection: %v", ErrTransactionFailed, err)
}
