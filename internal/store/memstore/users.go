package memstore

import (
	"cmp"
	"context"
	"database/sql"
	"slices"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/store"
)

type userStore struct {
	m    *Store
	held bool
}

var _ store.UserStore = (*userStore)(nil)

// WithTx returns the receiver; memstore transactions come from RunInTx.
func (s *userStore) WithTx(*sql.Tx) store.UserStore { return s }

func (s *userStore) Create(_ context.Context, user *domain.User) error {
	return s.m.with(s.held, func(st *state) error {
		if err := s.m.fault("users.Create"); err != nil {
			return err
		}
		if user.HashedPassword == "" {
			return store.NewStoreError("user", "create", "missing password hash", store.ErrInvalidEntity)
		}
		if _, taken := st.logins[user.Login]; taken {
			return store.ErrLoginExists
		}

		st.nextUserID++
		user.ID = st.nextUserID
		user.Tags = domain.NormalizeTags(user.Tags)
		user.Password = ""
		user.CreatedAt = s.m.now()
		st.users[user.ID] = cloneUser(user)
		st.logins[user.Login] = user.ID
		return nil
	})
}

func (s *userStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := s.m.with(s.held, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrUserNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (s *userStore) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	var id int64
	err := s.m.with(s.held, func(st *state) error {
		var ok bool
		if id, ok = st.logins[login]; !ok {
			return store.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *userStore) UnionTags(_ context.Context, userID int64, tags []string) ([]string, error) {
	var out []string
	err := s.m.with(s.held, func(st *state) error {
		if err := s.m.fault("users.UnionTags"); err != nil {
			return err
		}
		u, ok := st.users[userID]
		if !ok {
			return store.ErrUserNotFound
		}
		u.Tags = domain.UnionTags(u.Tags, tags)
		out = slices.Clone(u.Tags)
		return nil
	})
	return out, err
}

func (s *userStore) SetClass(_ context.Context, userID int64, class domain.Rank) error {
	return s.m.with(s.held, func(st *state) error {
		if err := s.m.fault("users.SetClass"); err != nil {
			return err
		}
		if !class.Valid() {
			return store.NewStoreError("user", "set class", "invalid rank", store.ErrInvalidEntity)
		}
		u, ok := st.users[userID]
		if !ok {
			return store.ErrUserNotFound
		}
		u.Class = class
		return nil
	})
}

func (s *userStore) SetAdmin(_ context.Context, userID int64, admin bool) error {
	return s.m.with(s.held, func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return store.ErrUserNotFound
		}
		u.IsAdmin = admin
		return nil
	})
}

func (s *userStore) TopPlayers(_ context.Context, limit int) ([]domain.PlayerStanding, error) {
	return s.standings(limit, func(*domain.User) bool { return true })
}

func (s *userStore) TopPlayersByClass(_ context.Context, class domain.Rank, limit int) ([]domain.PlayerStanding, error) {
	return s.standings(limit, func(u *domain.User) bool { return u.Class == class })
}

func (s *userStore) standings(limit int, include func(*domain.User) bool) ([]domain.PlayerStanding, error) {
	out := make([]domain.PlayerStanding, 0)
	err := s.m.with(s.held, func(st *state) error {
		counts := make(map[int64]int64)
		for _, c := range st.completions {
			counts[c.userID]++
		}
		for _, u := range st.users {
			if include(u) {
				out = append(out, domain.PlayerStanding{
					UserID:    u.ID,
					Name:      u.Name,
					Class:     u.Class,
					Completed: counts[u.ID],
				})
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.PlayerStanding) int {
		if c := cmp.Compare(b.Completed, a.Completed); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
