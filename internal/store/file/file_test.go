package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCreateAccountRejectsDuplicate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.CreateAccount(ctx, "alice", "secret"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := st.CreateAccount(ctx, "alice", "other"); !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	acc, err := st.GetAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Credential != "secret" {
		t.Fatalf("expected original credential to survive, got %q", acc.Credential)
	}

	data, err := os.ReadFile(filepath.Join(st.Dir(), usersFile))
	if err != nil {
		t.Fatalf("read users file: %v", err)
	}
	if string(data) != "alice secret\n" {
		t.Fatalf("unexpected users.txt contents: %q", data)
	}
}

func TestGetAccountMissing(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.GetAccount(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAccountIsCaseSensitive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.CreateAccount(ctx, "Alice", "pw"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := st.GetAccount(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for different case, got %v", err)
	}
	if err := st.CreateAccount(ctx, "alice", "pw"); err != nil {
		t.Fatalf("expected different case to register, got %v", err)
	}
}

func TestSaveAndLoadGroups(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	groups := []store.Group{
		{
			ID:      100,
			Name:    "team",
			Admins:  store.NewNameSet("alice"),
			Members: store.NewNameSet("alice", "carol"),
			Banned:  store.NewNameSet("bob"),
		},
		{
			ID:      101,
			Name:    "empty",
			Admins:  store.NewNameSet("dave"),
			Members: store.NewNameSet("dave"),
		},
	}
	if err := st.SaveGroups(ctx, groups); err != nil {
		t.Fatalf("save groups: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(st.Dir(), groupsFile))
	if err != nil {
		t.Fatalf("read groups file: %v", err)
	}
	want := "100|team|alice|alice,carol|bob\n101|empty|dave|dave|\n"
	if string(data) != want {
		t.Fatalf("unexpected groups.txt:\nwant %q\ngot  %q", want, data)
	}

	loaded, err := st.LoadGroups(ctx)
	if err != nil {
		t.Fatalf("load groups: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(loaded))
	}
	if loaded[0].Name != "team" || loaded[0].ID != 100 {
		t.Fatalf("unexpected first group: %+v", loaded[0])
	}
	if diff := cmp.Diff([]string{"alice", "carol"}, loaded[0].Members.Values()); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
	if !loaded[0].Banned.Has("bob") {
		t.Fatalf("expected bob banned")
	}
	if loaded[1].Banned.Len() != 0 {
		t.Fatalf("expected empty banned set, got %v", loaded[1].Banned.Values())
	}
}

func TestSaveGroupsOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := []store.Group{{ID: 100, Name: "a"}, {ID: 101, Name: "b"}}
	if err := st.SaveGroups(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveGroups(ctx, first[1:]); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := st.LoadGroups(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Name != "b" {
		t.Fatalf("expected only group b, got %+v", loaded)
	}
}

func TestSaveGroupsRejectsSeparatorsInNames(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	good := []store.Group{{ID: 100, Name: "team", Admins: store.NewNameSet("alice"), Members: store.NewNameSet("alice")}}
	if err := st.SaveGroups(ctx, good); err != nil {
		t.Fatalf("save: %v", err)
	}

	bad := []store.Group{{ID: 100, Name: "team", Admins: store.NewNameSet("alice"), Banned: store.NewNameSet("x|y")}}
	if err := st.SaveGroups(ctx, bad); !errors.Is(err, store.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	loaded, err := st.LoadGroups(ctx)
	if err != nil {
		t.Fatalf("load after rejected save: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Banned.Len() != 0 {
		t.Fatalf("expected previous catalog untouched, got %+v", loaded)
	}
}

func TestLoadGroupsRejectsCorruptRecord(t *testing.T) {
	st := newTestStore(t)

	if err := os.WriteFile(filepath.Join(st.Dir(), groupsFile), []byte("100|team|alice\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := st.LoadGroups(context.Background()); err == nil {
		t.Fatalf("expected error for corrupt record")
	}
}

func TestHistoryAppendAndReplayOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lines := []string{"alice: hi", "bob: hello", "SERVER:carol joined General Channel."}
	for _, l := range lines {
		if err := st.AppendHistory(ctx, store.RoomGeneral, l); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := st.AppendHistory(ctx, store.RoomStudy, "elsewhere"); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := st.History(ctx, store.RoomGeneral)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if diff := cmp.Diff(lines, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	// Reopening the directory sees the same log.
	reopened, err := New(st.Dir())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err = reopened.History(ctx, store.RoomGeneral)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if diff := cmp.Diff(lines, got); diff != "" {
		t.Fatalf("history after reopen mismatch (-want +got):\n%s", diff)
	}
}

func TestPurgeHistory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.AppendHistory(ctx, 105, "x: y"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := st.PurgeHistory(ctx, 105); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if err := st.PurgeHistory(ctx, 105); err != nil {
		t.Fatalf("second purge should be a no-op: %v", err)
	}
	got, err := st.History(ctx, 105)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
}

func TestHistoryFileName(t *testing.T) {
	tests := map[int]string{
		1:   "chat_general.txt",
		2:   "chat_study.txt",
		3:   "chat_gaming.txt",
		100: "chat_group_100.txt",
	}
	for room, want := range tests {
		if got := HistoryFileName(room); got != want {
			t.Errorf("HistoryFileName(%d) = %q, want %q", room, got, want)
		}
	}
}
