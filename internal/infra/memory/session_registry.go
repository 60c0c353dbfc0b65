package memory

import (
	"sync"

	"quiz-session-engine/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
// In-progress sessions are deliberately not persisted: a reload starts a
// fresh attempt.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*app.Session)}
}

func (r *SessionRegistry) Put(session *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
}

func (r *SessionRegistry) Get(sessionID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
