package signaling

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the per-connection metadata record. Its room and role are a
// cache of Router membership and only change while mu is held.
type Session struct {
	id   string
	peer Peer

	mu     sync.Mutex
	roomID string
	role   string
	closed bool
}

func (s *Session) ID() string { return s.id }

// Room returns the room the connection is currently joined to, if any.
func (s *Session) Room() (roomID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.role
}

// Registry tracks every active connection by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newID    func() string
}

// NewRegistry creates an empty registry. newID defaults to random UUIDs.
func NewRegistry(newID func() string) *Registry {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		sessions: make(map[string]*Session),
		newID:    newID,
	}
}

// Register stores a new session for p under an id not used by any active connection.
func (r *Registry) Register(p Peer) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id := r.newID()
		if _, taken := r.sessions[id]; taken {
			continue
		}
		s := &Session{id: id, peer: p}
		r.sessions[id] = s
		return s
	}
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Unregister removes and returns the session for id.
func (r *Registry) Unregister(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the sessions registered at the time of the call.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
