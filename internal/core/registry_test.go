package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistryCapacityAndIDs(t *testing.T) {
	r := NewRegistry(2)

	a, err := r.Register(&recordConn{})
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	b, err := r.Register(&recordConn{})
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	if _, err := r.Register(&recordConn{}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("unexpected ids %d, %d", a.ID, b.ID)
	}
	if !r.Info(a).ServerAdmin || r.Info(b).ServerAdmin {
		t.Fatalf("only the first session should be server admin")
	}

	if !r.Unregister(a) {
		t.Fatalf("first unregister should report true")
	}
	if r.Unregister(a) {
		t.Fatalf("second unregister should be a no-op")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Count())
	}

	c, err := r.Register(&recordConn{})
	if err != nil {
		t.Fatalf("register into freed slot: %v", err)
	}
	if c.ID != 3 {
		t.Fatalf("ids must keep increasing, got %d", c.ID)
	}
}

func TestRegistryFindByNameMatchesAuthenticatedOnly(t *testing.T) {
	r := NewRegistry(4)

	guest, _ := r.Register(&recordConn{})
	r.SetName(guest, "alice")
	if r.FindByName("alice") != nil {
		t.Fatalf("unauthenticated session must not be found")
	}

	alice, _ := r.Register(&recordConn{})
	r.Authenticate(alice, "alice", 1)
	if got := r.FindByName("alice"); got != alice {
		t.Fatalf("expected authenticated alice, got %+v", got)
	}
	if r.FindByName("Alice") != nil {
		t.Fatalf("lookup must be case-sensitive")
	}
	if r.Authenticate(alice, "other", 2) {
		t.Fatalf("authenticate must not run twice")
	}
}

func TestRegistrySnapshotAndMoveIf(t *testing.T) {
	r := NewRegistry(4)
	var sessions []*Session
	for i, name := range []string{"a", "b", "c"} {
		s, _ := r.Register(&recordConn{})
		r.Authenticate(s, name, i%2+1)
		sessions = append(sessions, s)
	}

	infos := r.Infos(func(info SessionInfo) bool { return info.Room == 1 })
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	if diff := cmp.Diff([]string{"a", "c"}, names); diff != "" {
		t.Fatalf("room 1 sessions mismatch (-want +got):\n%s", diff)
	}

	if r.MoveIf(sessions[1], 1, 3) {
		t.Fatalf("MoveIf must not move a session from another room")
	}
	if !r.MoveIf(sessions[0], 1, 3) || r.Info(sessions[0]).Room != 3 {
		t.Fatalf("MoveIf should move a session in the source room")
	}
}
