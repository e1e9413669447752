package web

import (
	"sync"

	"github.com/google/uuid"

	"github.com/local/pdfassembly/internal/metrics"
	"github.com/local/pdfassembly/internal/session"
)

// Manager owns the live editing sessions, keyed by id. Nothing persists:
// destroying a session (or the process) discards its state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	factory  func() *session.Session
}

func NewManager(factory func() *session.Session) *Manager {
	return &Manager{
		sessions: map[string]*session.Session{},
		factory:  factory,
	}
}

func (m *Manager) Create() (string, *session.Session) {
	id := uuid.NewString()
	s := m.factory()
	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetActiveSessions(n)
	return id, s
}

func (m *Manager) Get(id string) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Destroy resets the session (releasing document handles) and forgets it.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if ok {
		s.Reset()
	}
	metrics.SetActiveSessions(n)
}
