// Package memstore is an in-memory implementation of the store interfaces.
//
// All data sits behind one mutex. A transaction holds that mutex from begin
// to commit, so transactions are fully serialized, and rollback restores a
// snapshot taken at begin. Savepoints snapshot the same way. It backs the
// service unit tests; production uses the postgres package.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/store"
)

type completion struct {
	userID      int64
	completedAt time.Time
}

// state is everything a transaction may need to restore.
type state struct {
	tasks       map[int64]*domain.Task
	users       map[int64]*domain.User
	logins      map[string]int64
	completions map[int64]completion // keyed by task ID
	invites     map[string]*domain.InviteToken
	nextTaskID  int64
	nextUserID  int64
}

func newState() *state {
	return &state{
		tasks:       make(map[int64]*domain.Task),
		users:       make(map[int64]*domain.User),
		logins:      make(map[string]int64),
		completions: make(map[int64]completion),
		invites:     make(map[string]*domain.InviteToken),
	}
}

func (s *state) clone() *state {
	c := &state{
		tasks:       make(map[int64]*domain.Task, len(s.tasks)),
		users:       make(map[int64]*domain.User, len(s.users)),
		logins:      maps.Clone(s.logins),
		completions: maps.Clone(s.completions),
		invites:     make(map[string]*domain.InviteToken, len(s.invites)),
		nextTaskID:  s.nextTaskID,
		nextUserID:  s.nextUserID,
	}
	for id, t := range s.tasks {
		c.tasks[id] = cloneTask(t)
	}
	for id, u := range s.users {
		c.users[id] = cloneUser(u)
	}
	for tok, inv := range s.invites {
		cp := *inv
		c.invites[tok] = &cp
	}
	return c
}

func cloneTask(t *domain.Task) *domain.Task {
	cp := *t
	cp.Tags = slices.Clone(t.Tags)
	if t.AssignedTo != nil {
		owner := *t.AssignedTo
		cp.AssignedTo = &owner
	}
	return &cp
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.Tags = slices.Clone(u.Tags)
	return &cp
}

// Store holds the shared in-memory data.
type Store struct {
	mu     sync.Mutex
	data   *state
	faults map[string]error
	now    func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:   newState(),
		faults: make(map[string]error),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes the named operation (e.g. "users.SetClass", "tx.begin")
// return err until cleared with a nil err. It is meant for tests that
// exercise rollback paths.
func (m *Store) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// fault must be called with mu held.
func (m *Store) fault(op string) error {
	return m.faults[op]
}

// Tasks returns a TaskStore whose calls each lock the store.
func (m *Store) Tasks() store.TaskStore { return &taskStore{m: m} }

// Users returns a UserStore whose calls each lock the store.
func (m *Store) Users() store.UserStore { return &userStore{m: m} }

// Completions returns a CompletionStore whose calls each lock the store.
func (m *Store) Completions() store.CompletionStore { return &completionStore{m: m} }

// Invites returns an InviteStore whose calls each lock the store.
func (m *Store) Invites() store.InviteStore { return &inviteStore{m: m} }

// with runs fn against the data, taking the lock unless the caller is inside
// a transaction that already holds it.
func (m *Store) with(held bool, fn func(st *state) error) error {
	if !held {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(m.data)
}

// Ensure Store implements store.Transactor interface
var _ store.Transactor = (*Store)(nil)

// RunInTx implements store.Transactor.RunInTx.
func (m *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.TxScope) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("tx.begin"); err != nil {
		return err
	}

	snapshot := m.data.clone()
	defer func() {
		if p := recover(); p != nil {
			m.data = snapshot
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
		if err != nil {
			m.data = snapshot
		}
	}()

	return fn(ctx, &txScope{m: m})
}

type txScope struct {
	m *Store
}

func (s *txScope) Tasks() store.TaskStore             { return &taskStore{m: s.m, held: true} }
func (s *txScope) Users() store.UserStore             { return &userStore{m: s.m, held: true} }
func (s *txScope) Completions() store.CompletionStore { return &completionStore{m: s.m, held: true} }
func (s *txScope) Invites() store.InviteStore         { return &inviteStore{m: s.m, held: true} }

// Savepoint implements store.TxScope.Savepoint.
func (s *txScope) Savepoint(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	snapshot := s.m.data.clone()
	if err := fn(ctx); err != nil {
		s.m.data = snapshot
		return err
	}
	return nil
}
