package memstore

import (
	"context"
	"database/sql"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/store"
)

type inviteStore struct {
	m    *Store
	held bool
}

var _ store.InviteStore = (*inviteStore)(nil)

// WithTx returns the receiver; memstore transactions come from RunInTx.
func (s *inviteStore) WithTx(*sql.Tx) store.InviteStore { return s }

func (s *inviteStore) Create(_ context.Context, token string) (*domain.InviteToken, error) {
	var out domain.InviteToken
	err := s.m.with(s.held, func(st *state) error {
		if _, ok := st.invites[token]; ok {
			return store.ErrInviteExists
		}
		inv := &domain.InviteToken{Token: token, CreatedAt: s.m.now()}
		st.invites[token] = inv
		out = *inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *inviteStore) Get(_ context.Context, token string) (*domain.InviteToken, error) {
	var out domain.InviteToken
	err := s.m.with(s.held, func(st *state) error {
		inv, ok := st.invites[token]
		if !ok {
			return store.ErrInviteNotFound
		}
		out = *inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *inviteStore) ExpireIfActive(_ context.Context, token string) (bool, error) {
	applied := false
	err := s.m.with(s.held, func(st *state) error {
		if inv, ok := st.invites[token]; ok && !inv.IsExpired {
			inv.IsExpired = true
			applied = true
		}
		return nil
	})
	return applied, err
}
