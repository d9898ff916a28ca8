package memstore

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"iter"
	"slices"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/store"
)

type taskStore struct {
	m    *Store
	held bool
}

var _ store.TaskStore = (*taskStore)(nil)

// WithTx returns the receiver; memstore transactions come from RunInTx.
func (s *taskStore) WithTx(*sql.Tx) store.TaskStore { return s }

func (s *taskStore) Create(_ context.Context, task *domain.Task) error {
	return s.m.with(s.held, func(st *state) error {
		if err := s.m.fault("tasks.Create"); err != nil {
			return err
		}
		task.Tags = domain.NormalizeTags(task.Tags)
		if err := task.Validate(); err != nil {
			return store.NewStoreError("task", "create", "validation failed", errors.Join(store.ErrInvalidEntity, err))
		}

		st.nextTaskID++
		task.ID = st.nextTaskID
		task.AssignedTo = nil
		task.CreatedAt = s.m.now()
		st.tasks[task.ID] = cloneTask(task)
		return nil
	})
}

func (s *taskStore) Delete(_ context.Context, id int64) error {
	return s.m.with(s.held, func(st *state) error {
		if _, ok := st.tasks[id]; !ok {
			return store.ErrTaskNotFound
		}
		if _, done := st.completions[id]; done {
			return store.NewStoreError("task", "delete", "task is completed", store.ErrTaskCompleted)
		}
		delete(st.tasks, id)
		return nil
	})
}

func (s *taskStore) GetByID(_ context.Context, id int64) (*domain.Task, error) {
	var out *domain.Task
	err := s.m.with(s.held, func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return store.ErrTaskNotFound
		}
		out = cloneTask(t)
		return nil
	})
	return out, err
}

func (s *taskStore) GetTags(ctx context.Context, id int64) ([]string, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Tags, nil
}

func (s *taskStore) GetAssignedTo(ctx context.Context, id int64) (int64, bool, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if t.AssignedTo == nil {
		return 0, false, nil
	}
	return *t.AssignedTo, true, nil
}

func (s *taskStore) Available(_ context.Context) iter.Seq2[*domain.Task, error] {
	return s.seq(func(st *state, t *domain.Task) bool {
		_, done := st.completions[t.ID]
		return t.AssignedTo == nil && !done
	})
}

func (s *taskStore) Assigned(_ context.Context, userID int64) iter.Seq2[*domain.Task, error] {
	return s.seq(func(st *state, t *domain.Task) bool {
		_, done := st.completions[t.ID]
		return t.AssignedTo != nil && *t.AssignedTo == userID && !done
	})
}

// seq snapshots matching tasks on every range and yields them by ID.
func (s *taskStore) seq(match func(st *state, t *domain.Task) bool) iter.Seq2[*domain.Task, error] {
	return func(yield func(*domain.Task, error) bool) {
		var matched []*domain.Task
		_ = s.m.with(s.held, func(st *state) error {
			for _, t := range st.tasks {
				if match(st, t) {
					matched = append(matched, cloneTask(t))
				}
			}
			return nil
		})
		slices.SortFunc(matched, func(a, b *domain.Task) int { return cmp.Compare(a.ID, b.ID) })

		for _, t := range matched {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (s *taskStore) State(_ context.Context, id int64) (domain.TaskState, error) {
	var out domain.TaskState
	err := s.m.with(s.held, func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return store.ErrTaskNotFound
		}
		if t.AssignedTo != nil {
			owner := *t.AssignedTo
			out.Owner = &owner
		}
		if c, ok := st.completions[id]; ok {
			by := c.userID
			out.Completed = true
			out.CompletedBy = &by
		}
		return nil
	})
	return out, err
}

// LockState is State; the transaction already holds the only lock.
func (s *taskStore) LockState(ctx context.Context, id int64) (domain.TaskState, error) {
	return s.State(ctx, id)
}

func (s *taskStore) ClaimIfUnowned(_ context.Context, taskID, userID int64) (bool, error) {
	applied := false
	err := s.m.with(s.held, func(st *state) error {
		t, ok := st.tasks[taskID]
		if !ok {
			return nil
		}
		if _, done := st.completions[taskID]; done {
			return nil
		}
		if t.AssignedTo != nil && *t.AssignedTo != userID {
			return nil
		}
		owner := userID
		t.AssignedTo = &owner
		applied = true
		return nil
	})
	return applied, err
}

func (s *taskStore) ReleaseIfOwnedBy(_ context.Context, taskID, userID int64) (bool, error) {
	applied := false
	err := s.m.with(s.held, func(st *state) error {
		t, ok := st.tasks[taskID]
		if !ok || t.AssignedTo == nil || *t.AssignedTo != userID {
			return nil
		}
		if _, done := st.completions[taskID]; done {
			return nil
		}
		t.AssignedTo = nil
		applied = true
		return nil
	})
	return applied, err
}
