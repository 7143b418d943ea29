package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
)

// ManagerConfig controls session lifetime.
type ManagerConfig struct {
	// IdleTTL evicts sessions unused for this long. Zero disables eviction.
	IdleTTL time.Duration

	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTTL:     2 * time.Hour,
		MaxSessions: 1000,
	}
}

// Manager owns the live sessions.
type Manager struct {
	config ManagerConfig
	deps   *Dependencies
	logger *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Missing optional dependencies take defaults.
func NewManager(config ManagerConfig, deps Dependencies) *Manager {
	deps.withDefaults()
	return &Manager{
		config:   config,
		deps:     &deps,
		logger:   deps.Logger.With(logger.Component("sessions")),
		sessions: make(map[string]*Session),
	}
}

// Open creates a session and loads its student directory. A directory
// failure does not prevent the session from being used; it is returned
// alongside the session and recorded in its notice.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.evictLocked(m.deps.Clock())
		if len(m.sessions) >= m.config.MaxSessions {
			m.mu.Unlock()
			return nil, shared.ErrTooManySessions
		}
	}
	s := newSession(uuid.NewString(), m.deps)
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("session opened", logger.SessionID(s.id))
	return s, s.LoadDirectory(ctx)
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, shared.ErrSessionNotFound
	}

	if m.expired(s, m.deps.Clock()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, shared.ErrSessionExpired
	}
	return s, nil
}

// Close removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return shared.ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.logger.Info("session closed", logger.SessionID(id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CapacityStats describes how many sessions are in use.
type CapacityStats struct {
	Open int `json:"open"`
	Max  int `json:"max,omitempty"`
}

// Capacity reports live sessions. It returns shared.ErrTooManySessions when
// the next Open would be refused. Idle sessions that Open would evict are
// not counted.
func (m *Manager) Capacity() (CapacityStats, error) {
	now := m.deps.Clock()

	m.mu.RLock()
	live := 0
	for _, s := range m.sessions {
		if !m.expired(s, now) {
			live++
		}
	}
	m.mu.RUnlock()

	stats := CapacityStats{Open: live, Max: m.config.MaxSessions}
	if stats.Max > 0 && live >= stats.Max {
		return stats, shared.ErrTooManySessions
	}
	return stats, nil
}

// Sweep evicts idle sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictLocked(m.deps.Clock())
}

func (m *Manager) evictLocked(now time.Time) int {
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("evicted idle sessions", logger.Int("count", removed))
	}
	return removed
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	if m.config.IdleTTL <= 0 {
		return false
	}
	return now.Sub(s.LastActive()) > m.config.IdleTTL
}
