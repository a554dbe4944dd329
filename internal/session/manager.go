package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tactix/internal/metrics"
	"github.com/tactix/pkg/logger"
)

// Manager maps user IDs to their sessions.
type Manager struct {
	deps     *Deps
	sessions map[string]*Session
	lastUsed map[string]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now for idle tracking.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager sharing deps between sessions.
func NewManager(deps *Deps, opts ...ManagerOption) *Manager {
	m := &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
		lastUsed: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session of userID, opening it on first use.
func (m *Manager) Get(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastUsed[userID] = m.now()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := Open(ctx, userID, m.deps)
	m.sessions[userID] = s
	metrics.SetActiveSessions(len(m.sessions))
	return s
}

// Close closes and forgets the session of userID.
func (m *Manager) Close(userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	delete(m.lastUsed, userID)
	metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// EvictIdle closes the sessions nobody used for longer than maxIdle and
// returns their user IDs, sorted. Busy sessions are kept.
func (m *Manager) EvictIdle(maxIdle time.Duration) []string {
	m.mu.Lock()
	now := m.now()
	var (
		ids     []string
		evicted []*Session
	)
	for id, s := range m.sessions {
		if now.Sub(m.lastUsed[id]) <= maxIdle || s.Busy() {
			continue
		}
		delete(m.sessions, id)
		delete(m.lastUsed, id)
		ids = append(ids, id)
		evicted = append(evicted, s)
	}
	metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	for _, s := range evicted {
		if err := s.Close(); err != nil {
			logger.Log.Warnf("Closing idle session %s: %v", s.UserID(), err)
		}
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.lastUsed = make(map[string]time.Time)
	metrics.SetActiveSessions(0)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
