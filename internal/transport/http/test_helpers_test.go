package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/config"
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/groups"
	"github.com/vovakirdan/roomchat-server/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	hub    *core.Hub
	auth   *auth.Service
}

// newTestEnv starts the HTTP server over an in-memory SQLite store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	catalog, err := groups.Load(context.Background(), st, groups.Options{})
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	authService := auth.NewService(st, auth.PlainHasher{}, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(authService, catalog, st, core.Options{MaxClients: 4}, &disabledLogger)

	cfg := config.Default()
	cfg.HTTPAddr = ":0"
	cfg.ReadHeaderTimeout = time.Second

	server := NewServer(hub, authService, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		hub.CloseAll()
		ts.Close()
	})

	return &testEnv{server: ts, hub: hub, auth: authService}
}

// nopConn backs sessions driven directly through the hub.
type nopConn struct{}

func (nopConn) Send(string) error  { return nil }
func (nopConn) Close() error       { return nil }
func (nopConn) RemoteAddr() string { return "test" }

// chatUser registers name through the hub as if it had connected over TCP.
func (e *testEnv) chatUser(t *testing.T, name string) *core.Session {
	t.Helper()

	s, err := e.hub.Connect(nopConn{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	e.hub.Handshake(s, name)
	e.hub.HandleLine(context.Background(), s, "/register "+name+" pw")
	if !e.hub.Registry().Info(s).Authenticated {
		t.Fatalf("register %s failed", name)
	}
	return s
}
