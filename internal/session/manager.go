package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/storage"
)

// Manager owns the loaded session stores, one per signed-in user. Opening a
// user loads their sessions; closing drops them from memory.
type Manager struct {
	kv   storage.Store
	opts []Option

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager creates a manager persisting to kv. opts apply to every store.
func NewManager(kv storage.Store, opts ...Option) *Manager {
	return &Manager{
		kv:     kv,
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Open returns the loaded store for user, restoring it from storage on
// first use, and records the user profile
func (m *Manager) Open(ctx context.Context, user domain.User) (*Store, error) {
	if user.ID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.stores[user.ID]; ok {
		return st, nil
	}

	st := NewStore(user.ID, m.kv, m.opts...)
	if err := st.Restore(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to persist default session")
	}

	if data, err := json.Marshal(user); err == nil {
		if err := m.kv.Set(ctx, storage.UserKey(user.ID), data); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to store user profile")
		}
	}

	m.stores[user.ID] = st
	log.Debug().Str("user_id", user.ID).Int("sessions", len(st.Sessions())).Msg("sessions loaded")
	return st, nil
}

// Resume returns the store of a user who is still signed in, restoring it
// from storage when it is not loaded. A user whose profile key is absent
// has signed out and gets ErrSignedOut; the profile is never recreated
// here.
func (m *Manager) Resume(ctx context.Context, userID string) (*Store, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.stores[userID]; ok {
		return st, nil
	}

	if _, err := m.kv.Get(ctx, storage.UserKey(userID)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSignedOut
		}
		return nil, fmt.Errorf("failed to read user profile: %w", err)
	}

	st := NewStore(userID, m.kv, m.opts...)
	if err := st.Restore(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to persist default session")
	}

	m.stores[userID] = st
	log.Debug().Str("user_id", userID).Int("sessions", len(st.Sessions())).Msg("sessions resumed")
	return st, nil
}

// Lookup returns the store of an already opened user
func (m *Manager) Lookup(userID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stores[userID]
	return st, ok
}

// Close drops a user's in-memory sessions and profile key. The persisted
// session list stays for the next sign-in.
func (m *Manager) Close(ctx context.Context, userID string) {
	m.mu.Lock()
	st, ok := m.stores[userID]
	delete(m.stores, userID)
	m.mu.Unlock()

	if ok {
		st.Clear()
	}
	if err := m.kv.Delete(ctx, storage.UserKey(userID)); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to remove user profile")
	}
}

// LoadedUsers returns the number of users with an open store
func (m *Manager) LoadedUsers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}
