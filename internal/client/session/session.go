// Package session holds the client's current token pair and keeps it in durable storage.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/amp/internal/client/store"
	"github.com/hitoshi/amp/internal/model"
)

// StorageKey is the store key the serialized session lives under.
const StorageKey = "amp.auth.session"

// Session is the signed-in user and their current token pair.
type Session struct {
	User   model.PublicUser `json:"user"`
	Tokens model.TokenPair  `json:"tokens"`
}

// FromAuthResult converts a server auth response into a Session.
func FromAuthResult(res *model.AuthResult) Session {
	return Session{User: res.User, Tokens: res.Tokens}
}

// Manager is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	repo    store.Repository
	current *Session
}

// NewManager restores the session persisted in repo, if any.
// A stored record that does not decode is deleted and treated as no session.
func NewManager(ctx context.Context, repo store.Repository) (*Manager, error) {
	m := &Manager{repo: repo}

	raw, err := repo.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if raw == nil {
		return m, nil
	}

	var s *Session
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("discarding unreadable stored session", slog.String("error", err.Error()))
		if err := repo.Delete(ctx, StorageKey); err != nil {
			return nil, fmt.Errorf("failed to discard stored session: %w", err)
		}
		return m, nil
	}
	m.current = s
	return m, nil
}

// Current returns a copy of the session, or nil when signed out.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// IsAuthenticated reports whether an access token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.AccessToken() != ""
}

// AccessToken returns the held access token or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Tokens.AccessToken
}

// RefreshToken returns the held refresh token or "".
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Tokens.RefreshToken
}

// Set replaces the session and persists it. The in-memory session is updated
// even when persisting fails.
func (m *Manager) Set(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return m.persist(ctx, s)
}

// UpdateTokens swaps the token pair of the current session. Without a
// session it does nothing.
func (m *Manager) UpdateTokens(ctx context.Context, tokens model.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	s.Tokens = tokens
	m.current = &s
	return m.persist(ctx, s)
}

// Clear forgets the session in memory and in storage.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	if err := m.repo.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to delete stored session: %w", err)
	}
	return nil
}

// persist must be called with mu held.
func (m *Manager) persist(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.repo.Set(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}
