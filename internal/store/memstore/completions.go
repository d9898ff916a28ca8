package memstore

import (
	"context"
	"database/sql"
	"slices"

	"github.com/phrazzld/questboard-api/internal/store"
)

type completionStore struct {
	m    *Store
	held bool
}

var _ store.CompletionStore = (*completionStore)(nil)

// WithTx returns the receiver; memstore transactions come from RunInTx.
func (s *completionStore) WithTx(*sql.Tx) store.CompletionStore { return s }

func (s *completionStore) Insert(_ context.Context, userID, taskID int64) error {
	return s.m.with(s.held, func(st *state) error {
		if err := s.m.fault("completions.Insert"); err != nil {
			return err
		}
		if _, done := st.completions[taskID]; done {
			return store.ErrCompletionExists
		}
		if _, ok := st.tasks[taskID]; !ok {
			return store.NewStoreError("completion", "insert", "task missing", store.ErrInvalidEntity)
		}
		if _, ok := st.users[userID]; !ok {
			return store.NewStoreError("completion", "insert", "user missing", store.ErrInvalidEntity)
		}
		st.completions[taskID] = completion{userID: userID, completedAt: s.m.now()}
		return nil
	})
}

func (s *completionStore) CountByUser(_ context.Context, userID int64) (int64, error) {
	var n int64
	err := s.m.with(s.held, func(st *state) error {
		for _, c := range st.completions {
			if c.userID == userID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *completionStore) AverageComplexity(_ context.Context, userID int64) (float64, bool, error) {
	return s.average("completions.AverageComplexity", userID, func(st *state, taskID int64) float64 {
		return float64(st.tasks[taskID].Complexity)
	})
}

func (s *completionStore) AverageExpectedTime(_ context.Context, userID int64) (float64, bool, error) {
	return s.average("completions.AverageExpectedTime", userID, func(st *state, taskID int64) float64 {
		return st.tasks[taskID].ExpectedTime
	})
}

func (s *completionStore) average(op string, userID int64, value func(st *state, taskID int64) float64) (float64, bool, error) {
	var (
		sum float64
		n   int
	)
	err := s.m.with(s.held, func(st *state) error {
		if err := s.m.fault(op); err != nil {
			return err
		}
		for taskID, c := range st.completions {
			if c.userID == userID {
				sum += value(st, taskID)
				n++
			}
		}
		return nil
	})
	if err != nil || n == 0 {
		return 0, false, err
	}
	return sum / float64(n), true, nil
}

func (s *completionStore) CalibrationCandidates(_ context.Context, cadence int) ([]int64, error) {
	ids := make([]int64, 0)
	err := s.m.with(s.held, func(st *state) error {
		if err := s.m.fault("completions.CalibrationCandidates"); err != nil {
			return err
		}
		counts := make(map[int64]int)
		for _, c := range st.completions {
			counts[c.userID]++
		}
		for id, n := range counts {
			if n > 0 && n%cadence == 0 {
				ids = append(ids, id)
			}
		}
		return nil
	})
	slices.Sort(ids)
	return ids, err
}
