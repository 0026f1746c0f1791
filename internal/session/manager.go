// Package session manages conversational session lifecycle over a
// session.Store: creation on first contact, atomic per-turn updates, and
// token regeneration after reset or payment.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/model/session"
)

// Manager owns all session mutations on the conversation path.
type Manager struct {
	store session.Store
	log   *zap.Logger
}

// NewManager creates a session manager backed by the given store.
func NewManager(store session.Store, log *zap.Logger) *Manager {
	return &Manager{store: store, log: log.Named("session")}
}

// GetOrCreate loads the session for the token, or provisions a fresh one when
// the token is blank or expired.
func (m *Manager) GetOrCreate(ctx context.Context, token string) (session.Session, error) {
	if token != "" {
		sess, err := m.store.Get(ctx, token)
		if err == nil {
			return sess, nil
		}
		if err != session.ErrNotFound {
			return session.Session{}, fmt.Errorf("load session: %w", err)
		}
	}

	sess := session.Session{
		Token: uuid.NewString(),
		Cart:  nil,
		Stage: session.StageIdle,
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	m.log.Debug("session created", zap.String("token", sess.Token))
	return sess, nil
}

// Regenerate replaces the session with a fresh token, empty cart, and idle
// stage. Tokens are uuids, so a regenerated token is never one previously in
// use. The old session is removed best-effort.
func (m *Manager) Regenerate(ctx context.Context, old session.Session) (session.Session, error) {
	fresh := session.Session{
		Token: uuid.NewString(),
		Cart:  nil,
		Stage: session.StageIdle,
	}
	if err := m.store.Save(ctx, fresh); err != nil {
		return session.Session{}, fmt.Errorf("regenerate session: %w", err)
	}
	if old.Token != "" {
		if err := m.store.Delete(ctx, old.Token); err != nil {
			m.log.Warn("drop old session", zap.String("token", old.Token), zap.Error(err))
		}
	}
	return fresh, nil
}

// Update persists the session's cart and stage in one write, so a concurrent
// reader of the same token never sees one without the other.
func (m *Manager) Update(ctx context.Context, sess session.Session) error {
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
