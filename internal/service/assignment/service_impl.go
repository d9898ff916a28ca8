package assignment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// Verify interface compliance at compile time
var _ Manager = (*managerImpl)(nil)

type managerImpl struct {
	tx     store.Transactor
	logger *slog.Logger
}

// NewManager creates a Manager. Each call runs in its own short transaction
// so that connection acquisition is bounded and the classifying read sees
// the same connection as the update.
func NewManager(tx store.Transactor, logger *slog.Logger) Manager {
	if tx == nil {
		// ALLOW-PANIC: constructor misuse
		panic("transactor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &managerImpl{
		tx:     tx,
		logger: logger.With(slog.String("component", "assignment_manager")),
	}
}

// Claim implements Manager.Claim.
func (m *managerImpl) Claim(ctx context.Context, taskID, userID int64) error {
	log := logger.FromContextOrDefault(ctx, m.logger)

	err := m.tx.RunInTx(ctx, func(ctx context.Context, tx store.TxScope) error {
		applied, err := tx.Tasks().ClaimIfUnowned(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		state, err := tx.Tasks().State(ctx, taskID)
		if err != nil {
			return err
		}
		return classifyClaim(state)
	})

	return m.finish(log, "claim", taskID, userID, err)
}

// Release implements Manager.Release.
func (m *managerImpl) Release(ctx context.Context, taskID, userID int64) error {
	log := logger.FromContextOrDefault(ctx, m.logger)

	err := m.tx.RunInTx(ctx, func(ctx context.Context, tx store.TxScope) error {
		// Wait for a completion holding the row so the update below reads
		// its fact; a row lock alone does not refresh the update's snapshot.
		if _, err := tx.Tasks().LockState(ctx, taskID); err != nil {
			return err
		}

		applied, err := tx.Tasks().ReleaseIfOwnedBy(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		state, err := tx.Tasks().State(ctx, taskID)
		if err != nil {
			return err
		}
		return classifyRelease(state)
	})

	return m.finish(log, "release", taskID, userID, err)
}

// classifyClaim explains why a claim did not apply. A task the caller
// already owns always applies, so any remaining owner is someone else.
func classifyClaim(state domain.TaskState) error {
	if state.Completed {
		return ErrAlreadyCompleted
	}
	return ErrAlreadyOwnedByOther
}

// classifyRelease explains why a release did not apply.
func classifyRelease(state domain.TaskState) error {
	switch {
	case state.Completed:
		return ErrAlreadyCompleted
	case state.Owner == nil:
		return ErrNotClaimed
	default:
		return ErrNotOwner
	}
}

// finish logs and shapes the result of a transition. State violations and
// not-found are caller errors and only logged at debug.
func (m *managerImpl) finish(log *slog.Logger, op string, taskID, userID int64, err error) error {
	attrs := []any{
		slog.String("operation", op),
		slog.Int64("task_id", taskID),
		slog.Int64("user_id", userID),
	}

	switch {
	case err == nil:
		log.Info("task "+op+" applied", attrs...)
		return nil
	case IsStateViolation(err), errors.Is(err, store.ErrTaskNotFound):
		log.Debug("task "+op+" rejected", append(attrs, slog.String("reason", err.Error()))...)
		return err
	case errors.Is(err, store.ErrPoolExhausted):
		return err
	default:
		return NewServiceError(op, "failed to update task ownership", err)
	}
}
