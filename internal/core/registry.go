package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/metrics"
	"github.com/vovakirdan/roomchat-server/internal/utils"
)

// Registry is the bounded table of live sessions.
// Its lock covers table scans and field updates only, never network sends.
type Registry struct {
	mu            sync.Mutex
	slots         []*Session
	count         int
	authenticated int
	nextID        int64
}

// NewRegistry creates a registry with room for capacity sessions.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 50
	}
	return &Registry{
		slots:  make([]*Session, capacity),
		nextID: 1,
	}
}

// Register places conn into a free slot. Returns ErrCapacityExceeded when full.
// Session ids increase strictly; the very first session ever accepted is the
// server admin.
func (r *Registry) Register(conn Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := -1
	for i, s := range r.slots {
		if s == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		metrics.RejectedConnections.Inc()
		return nil, ErrCapacityExceeded
	}

	s := &Session{
		ID:          r.nextID,
		ConnID:      utils.NewID(),
		conn:        conn,
		log:         zerolog.Nop(),
		serverAdmin: r.nextID == 1,
		slot:        slot,
	}
	r.nextID++
	r.slots[slot] = s
	r.count++
	metrics.Sessions.Set(float64(r.count))
	return s, nil
}

// Unregister frees the session's slot. It reports false if the session was
// already removed.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.slot < 0 || s.slot >= len(r.slots) || r.slots[s.slot] != s {
		return false
	}
	r.slots[s.slot] = nil
	s.slot = -1
	r.count--
	if s.authenticated {
		r.authenticated--
	}
	metrics.Sessions.Set(float64(r.count))
	metrics.AuthenticatedSessions.Set(float64(r.authenticated))
	return true
}

// Info returns a consistent copy of the session's state.
func (r *Registry) Info(s *Session) SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.info()
}

// SetName sets the pre-login display name.
func (r *Registry) SetName(s *Session, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.name = name
}

// Authenticate marks the session as logged in under username and places it in room.
// It reports false if the session was already authenticated.
func (r *Registry) Authenticate(s *Session, username string, room int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.authenticated {
		return false
	}
	s.authenticated = true
	s.name = username
	s.room = room
	if s.slot >= 0 && r.slots[s.slot] == s {
		r.authenticated++
		metrics.AuthenticatedSessions.Set(float64(r.authenticated))
	}
	return true
}

// SetRoom moves the session to room and returns the previous room.
func (r *Registry) SetRoom(s *Session, room int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := s.room
	s.room = room
	return prev
}

// MoveIf moves the session to room to only if it is currently in room from.
func (r *Registry) MoveIf(s *Session, from, to int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.room != from {
		return false
	}
	s.room = to
	return true
}

// FindByName returns the first live, authenticated session whose name matches
// exactly, or nil.
func (r *Registry) FindByName(name string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s != nil && s.authenticated && s.name == name {
			return s
		}
	}
	return nil
}

// Snapshot returns the sessions whose state matches pred, in slot order.
// The returned slice is safe to use after the lock is released.
func (r *Registry) Snapshot(pred func(SessionInfo) bool) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.slots {
		if s != nil && (pred == nil || pred(s.info())) {
			out = append(out, s)
		}
	}
	return out
}

// Infos is like Snapshot but returns copies of the session state.
func (r *Registry) Infos(pred func(SessionInfo) bool) []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []SessionInfo
	for _, s := range r.slots {
		if s == nil {
			continue
		}
		info := s.info()
		if pred == nil || pred(info) {
			out = append(out, info)
		}
	}
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}
