package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	rules "github.com/phrazzld/questboard-api/internal/domain/calibration"
	"github.com/phrazzld/questboard-api/internal/service/calibration"
	"github.com/phrazzld/questboard-api/internal/store"
)

// SweepResult summarizes one calibration sweep.
type SweepResult struct {
	Candidates int
	Changed    int
	Failed     int
}

// CalibrationSweep recalibrates every user whose completion count sits on a
// calibration boundary. Recalibration is idempotent, so users whose class is
// already right are left untouched.
type CalibrationSweep struct {
	completions store.CompletionStore
	calibrator  calibration.Calibrator
	concurrency int
	logger      *slog.Logger
}

// NewCalibrationSweep creates a sweep that recalibrates at most concurrency
// users at a time.
func NewCalibrationSweep(
	completions store.CompletionStore,
	calibrator calibration.Calibrator,
	concurrency int,
	logger *slog.Logger,
) *CalibrationSweep {
	if completions == nil || calibrator == nil {
		// ALLOW-PANIC: constructor misuse
		panic("calibration sweep dependencies cannot be nil")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalibrationSweep{
		completions: completions,
		calibrator:  calibrator,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "calibration_sweep")),
	}
}

// Run performs one sweep. Each user is recalibrated in its own transaction;
// one user's failure does not stop the others. The returned error joins
// every per-user failure.
func (s *CalibrationSweep) Run(ctx context.Context) (SweepResult, error) {
	start := time.Now()

	candidates, err := s.completions.CalibrationCandidates(ctx, rules.Cadence)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list calibration candidates: %w", err)
	}

	var changed, failed atomic.Int64
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.concurrency)
	for _, userID := range candidates {
		p.Go(func(ctx context.Context) error {
			out, err := s.calibrator.Recalibrate(ctx, userID)
			if err != nil {
				failed.Add(1)
				return fmt.Errorf("user %d: %w", userID, err)
			}
			if out.Changed() {
				changed.Add(1)
			}
			return nil
		})
	}
	err = p.Wait()

	result := SweepResult{
		Candidates: len(candidates),
		Changed:    int(changed.Load()),
		Failed:     int(failed.Load()),
	}

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "calibration sweep finished",
		slog.Int("candidates", result.Candidates),
		slog.Int("changed", result.Changed),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(start)))

	return result, err
}

// RunScheduled is Run shaped for Scheduler: errors are logged, not returned.
func (s *CalibrationSweep) RunScheduled(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("calibration sweep failed", slog.String("error", err.Error()))
	}
}
