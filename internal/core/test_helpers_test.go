package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/groups"
	"github.com/vovakirdan/roomchat-server/internal/store/file"
)

// recordConn is an in-memory Conn that keeps every line sent to it.
type recordConn struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

func (c *recordConn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordConn) RemoteAddr() string { return "test" }

// Lines returns a copy of everything received so far.
func (c *recordConn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *recordConn) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[len(c.lines)-1]
}

func (c *recordConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

func (c *recordConn) Has(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l == line {
			return true
		}
	}
	return false
}

type testClient struct {
	*Session
	conn *recordConn
}

type testEnv struct {
	hub   *Hub
	store *file.FileStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	st, err := file.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	catalog, err := groups.Load(context.Background(), st, groups.Options{Capacity: 10})
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	accounts := auth.NewService(st, auth.PlainHasher{}, &auth.JWTConfig{
		Secret: []byte("test"),
		TTL:    time.Hour,
	})
	return &testEnv{
		hub:   NewHub(accounts, catalog, st, opts, nil),
		store: st,
	}
}

// connect registers a fresh connection and performs the display-name handshake.
func (e *testEnv) connect(t *testing.T, name string) *testClient {
	t.Helper()

	conn := &recordConn{}
	s, err := e.hub.Connect(conn)
	if err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	e.hub.Handshake(s, name)
	return &testClient{Session: s, conn: conn}
}

// user connects and registers name, then clears the recorded lines.
func (e *testEnv) user(t *testing.T, name string) *testClient {
	t.Helper()

	c := e.connect(t, name)
	e.send(c, "/register "+name+" pw")
	if !e.hub.Registry().Info(c.Session).Authenticated {
		t.Fatalf("register %s failed: %v", name, c.conn.Lines())
	}
	c.conn.Reset()
	return c
}

func (e *testEnv) send(c *testClient, line string) {
	e.hub.HandleLine(context.Background(), c.Session, line)
}

func (e *testEnv) room(c *testClient) int {
	return e.hub.Registry().Info(c.Session).Room
}

func resetAll(clients ...*testClient) {
	for _, c := range clients {
		c.conn.Reset()
	}
}
