package calibration

import (
	"context"
	"log/slog"

	rules "github.com/phrazzld/questboard-api/internal/domain/calibration"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// Verify interface compliance at compile time
var _ Calibrator = (*calibratorImpl)(nil)

type calibratorImpl struct {
	tx     store.Transactor
	logger *slog.Logger
}

// NewCalibrator creates a Calibrator. tx is only used by Recalibrate.
func NewCalibrator(tx store.Transactor, logger *slog.Logger) Calibrator {
	if tx == nil {
		// ALLOW-PANIC: constructor misuse
		panic("transactor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &calibratorImpl{
		tx:     tx,
		logger: logger.With(slog.String("component", "class_calibrator")),
	}
}

// Calibrate implements Calibrator.Calibrate.
func (c *calibratorImpl) Calibrate(ctx context.Context, scope store.TxScope, userID int64) (Outcome, error) {
	log := logger.FromContextOrDefault(ctx, c.logger).With(slog.Int64("user_id", userID))

	n, err := scope.Completions().CountByUser(ctx, userID)
	if err != nil {
		return Outcome{}, &ServiceError{Operation: "count", UserID: userID, Err: err}
	}

	user, err := scope.Users().GetByID(ctx, userID)
	if err != nil {
		return Outcome{}, &ServiceError{Operation: "load_user", UserID: userID, Err: err}
	}

	out := Outcome{Completions: n, Previous: user.Class, Class: user.Class}
	if !rules.Due(n) {
		return out, nil
	}
	out.Evaluated = true

	avg, ok, err := scope.Completions().AverageComplexity(ctx, userID)
	if err != nil {
		return out, &ServiceError{Operation: "average", UserID: userID, Err: err}
	}
	if !ok {
		// Due implies at least one completion; an empty average means the
		// rows vanished under us, so leave the class alone.
		return out, nil
	}

	estimated := rules.Estimate(avg)
	if estimated == user.Class {
		log.Debug("class unchanged after calibration",
			slog.Int64("completions", n),
			slog.Float64("average_complexity", avg),
			slog.String("class", estimated.String()))
		return out, nil
	}

	if err := scope.Users().SetClass(ctx, userID, estimated); err != nil {
		return out, &ServiceError{Operation: "set_class", UserID: userID, Err: err}
	}
	out.Class = estimated

	log.Info("user class recalibrated",
		slog.Int64("completions", n),
		slog.Float64("average_complexity", avg),
		slog.String("previous_class", user.Class.String()),
		slog.String("class", estimated.String()))
	return out, nil
}

// Recalibrate implements Calibrator.Recalibrate.
func (c *calibratorImpl) Recalibrate(ctx context.Context, userID int64) (Outcome, error) {
	var out Outcome
	err := c.tx.RunInTx(ctx, func(ctx context.Context, scope store.TxScope) error {
		var err error
		out, err = c.Calibrate(ctx, scope, userID)
		return err
	})
	return out, err
}
