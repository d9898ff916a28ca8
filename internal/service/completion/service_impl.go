package completion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/calibration"
	"github.com/phrazzld/questboard-api/internal/store"
)

// calibrationSavepoint names the nested unit of work around calibration.
const calibrationSavepoint = "calibration"

// Verify interface compliance at compile time
var _ Processor = (*processorImpl)(nil)

type processorImpl struct {
	tx         store.Transactor
	calibrator calibration.Calibrator
	logger     *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(tx store.Transactor, calibrator calibration.Calibrator, logger *slog.Logger) Processor {
	if tx == nil {
		// ALLOW-PANIC: constructor misuse
		panic("transactor cannot be nil")
	}
	if calibrator == nil {
		// ALLOW-PANIC: constructor misuse
		panic("calibrator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &processorImpl{
		tx:         tx,
		calibrator: calibrator,
		logger:     logger.With(slog.String("component", "completion_processor")),
	}
}

// Complete implements Processor.Complete.
func (p *processorImpl) Complete(ctx context.Context, taskID, userID int64) (*domain.CompletionResult, error) {
	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.Int64("task_id", taskID),
		slog.Int64("user_id", userID),
	)
	log.Debug("completing task")

	var result *domain.CompletionResult
	err := p.tx.RunInTx(ctx, func(ctx context.Context, scope store.TxScope) error {
		// The row lock is held until commit, so a concurrent release or
		// claim cannot slip in between this check and the insert.
		state, err := scope.Tasks().LockState(ctx, taskID)
		if err != nil {
			return err
		}
		if state.Completed {
			return assignment.ErrAlreadyCompleted
		}
		if !state.OwnedBy(userID) {
			return assignment.ErrNotOwner
		}

		if err := scope.Completions().Insert(ctx, userID, taskID); err != nil {
			if errors.Is(err, store.ErrCompletionExists) {
				return assignment.ErrAlreadyCompleted
			}
			return &ServiceError{Operation: "insert", Message: "failed to record completion", Err: err}
		}

		taskTags, err := scope.Tasks().GetTags(ctx, taskID)
		if err != nil {
			return &ServiceError{Operation: "task_tags", Message: "failed to load task tags", Err: err}
		}

		tags, err := scope.Users().UnionTags(ctx, userID, taskTags)
		if err != nil {
			return &ServiceError{Operation: "union_tags", Message: "failed to merge user tags", Err: err}
		}

		result = &domain.CompletionResult{
			TaskID: taskID,
			UserID: userID,
			Tags:   tags,
		}

		var outcome calibration.Outcome
		calErr := scope.Savepoint(ctx, calibrationSavepoint, func(ctx context.Context) error {
			var err error
			outcome, err = p.calibrator.Calibrate(ctx, scope, userID)
			return err
		})
		if calErr != nil {
			// The sweep job repairs the class later; the completion stands.
			log.Error("class calibration failed, completion kept",
				slog.String("error", calErr.Error()))
			return p.fillFromRows(ctx, scope, result)
		}

		result.CompletionCount = outcome.Completions
		result.Class = outcome.Class
		if outcome.Changed() {
			prev := outcome.Previous
			result.PreviousClass = &prev
		}
		return nil
	})
	if err != nil {
		if assignment.IsStateViolation(err) || store.IsNotFoundError(err) {
			log.Debug("completion rejected", slog.String("reason", err.Error()))
		}
		return nil, err
	}

	log.Info("task completed",
		slog.Int64("completion_count", result.CompletionCount),
		slog.String("class", result.Class.String()),
		slog.Bool("class_changed", result.ClassChanged()))
	return result, nil
}

// fillFromRows reads the count and class after a discarded calibration.
func (p *processorImpl) fillFromRows(ctx context.Context, scope store.TxScope, result *domain.CompletionResult) error {
	n, err := scope.Completions().CountByUser(ctx, result.UserID)
	if err != nil {
		return &ServiceError{Operation: "count", Message: "failed to count completions", Err: err}
	}
	user, err := scope.Users().GetByID(ctx, result.UserID)
	if err != nil {
		return &ServiceError{Operation: "load_user", Message: "failed to load user", Err: err}
	}
	result.CompletionCount = n
	result.Class = user.Class
	return nil
}
