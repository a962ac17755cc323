package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps the sessions of all visitors in memory, keyed by session ID.
type Registry struct {
	persona string

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry whose sessions are seeded with persona.
func NewRegistry(persona string) *Registry {
	return &Registry{
		persona:  persona,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session with the given id and marks it as seen.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// GetOrCreate returns the session with the given id, creating it when it does not exist. An empty id gets
// a fresh random one. The second result reports whether the session was created.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && id != "" {
		s.touch(r.now())
		return s, false
	}
	if id == "" {
		id = uuid.New().String()
	}
	s := NewSession(id, r.persona)
	s.touch(r.now())
	r.sessions[id] = s
	return s, true
}

// Prune aborts and removes sessions that have been idle for longer than maxIdle and returns how many
// were removed. Sessions with an exchange in flight are kept.
func (r *Registry) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	var stale []*Session
	cutoff := r.now().Add(-maxIdle)
	for id, s := range r.sessions {
		if s.Busy() || s.idleSince().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		stale = append(stale, s)
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Abort()
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close aborts every session's exchange in flight.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Abort()
	}
}
