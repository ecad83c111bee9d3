package core

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Conn is the transport side of a session. Send delivers one protocol line
// without its terminator; implementations add framing.
type Conn interface {
	Send(line string) error
	Close() error
	RemoteAddr() string
}

// Session is the live state of one connected client.
// Name, room and authentication state belong to the Registry and are only
// read or written under its lock; use Registry.Info for a consistent view.
type Session struct {
	ID     int64
	ConnID string

	conn    Conn
	sendMu  sync.Mutex
	limiter *rate.Limiter
	log     zerolog.Logger

	// guarded by Registry.mu
	name          string
	authenticated bool
	room          int
	serverAdmin   bool
	slot          int
}

// SessionInfo is a copy of a session's registry-owned fields.
type SessionInfo struct {
	ID            int64
	Name          string
	Authenticated bool
	Room          int
	ServerAdmin   bool
}

// Send writes one line to the session. Writes from different goroutines are serialized.
func (s *Session) Send(line string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.conn.Send(line); err != nil {
		s.log.Debug().Err(err).Msg("send failed")
		return err
	}
	return nil
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address reported by the transport.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *zerolog.Logger {
	return &s.log
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		Name:          s.name,
		Authenticated: s.authenticated,
		Room:          s.room,
		ServerAdmin:   s.serverAdmin,
	}
}
