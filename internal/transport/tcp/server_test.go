package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/groups"
	"github.com/vovakirdan/roomchat-server/internal/store/file"
)

func startTestServer(t *testing.T, maxClients, maxLine int) string {
	t.Helper()

	st, err := file.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	catalog, err := groups.Load(ctx, st, groups.Options{})
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	accounts := auth.NewService(st, nil, &auth.JWTConfig{Secret: []byte("test"), TTL: time.Hour})
	hub := core.NewHub(accounts, catalog, st, core.Options{MaxClients: maxClients}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(hub, Options{WriteTimeout: time.Second, MaxLineBytes: maxLine}, nopLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		hub.CloseAll()
		if err := <-done; err != nil {
			t.Errorf("serve returned %v", err)
		}
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer waitCancel()
		if err := srv.Wait(waitCtx); err != nil {
			t.Errorf("handlers did not finish: %v", err)
		}
	})
	return ln.Addr().String()
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type client struct {
	t  *testing.T
	nc net.Conn
	r  *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()

	nc, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = nc.Close() })
	return &client{t: t, nc: nc, r: bufio.NewReader(nc)}
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := io.WriteString(c.nc, line+"\n"); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

// expect reads lines until want arrives or the deadline passes.
func (c *client) expect(want string) {
	c.t.Helper()

	_ = c.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	var seen []string
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("waiting for %q: %v (seen %q)", want, err, seen)
		}
		line = strings.TrimRight(line, "\n")
		if line == want {
			return
		}
		seen = append(seen, line)
	}
}

// expectClosed reads until the server closes the connection.
func (c *client) expectClosed() {
	c.t.Helper()

	_ = c.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, err := c.r.ReadString('\n')
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "reset") {
			return
		}
		c.t.Fatalf("expected close, got %v", err)
	}
}

func TestChatOverTCP(t *testing.T) {
	addr := startTestServer(t, 4, 4096)

	alice := dial(t, addr)
	alice.send("alice")
	alice.send("/register alice pw")
	alice.expect("SERVER: Registered & Logged in.")

	bob := dial(t, addr)
	bob.send("bob\r")
	bob.send("/register bob pw")
	bob.expect("SERVER: Registered & Logged in.")
	alice.expect("SERVER:bob joined General Channel.")

	bob.send("hello everyone")
	alice.expect("bob: hello everyone")

	alice.send("/msg bob psst")
	bob.expect("PRIVATE:alice:psst")
	alice.expect("PRIVATE_SELF:bob:psst")

	_ = bob.nc.Close()
	alice.expect("SERVER:bob has left the chat.")
}

func TestServerFull(t *testing.T) {
	addr := startTestServer(t, 1, 4096)

	first := dial(t, addr)
	first.send("first")
	first.send("/register first pw")
	first.expect("SERVER: Registered & Logged in.")

	second := dial(t, addr)
	second.expect("SERVER: Server full.")
	second.expectClosed()
}

func TestLineTooLongClosesConnection(t *testing.T) {
	addr := startTestServer(t, 2, 64)

	c := dial(t, addr)
	c.send("name")
	c.send(strings.Repeat("x", 200))
	c.expectClosed()
}
