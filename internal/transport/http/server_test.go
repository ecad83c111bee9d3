package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) login(t *testing.T, user, pass string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: user, Password: pass})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	return decode[AuthResponse](t, resp).Token
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("health: %d %q", resp.StatusCode, body)
	}

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "chat_sessions") {
		t.Fatalf("metrics: %d, missing chat_sessions", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.chatUser(t, "alice")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"valid", LoginRequest{Username: "alice", Password: "pw"}, http.StatusOK},
		{"wrong password", LoginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "bob", Password: "pw"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"username": "alice"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/login", "", tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/rooms", "/api/users", "/api/groups/team"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s without token: %d", path, resp.StatusCode)
		}
		resp = env.do(t, http.MethodGet, path, "garbage", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s with bad token: %d", path, resp.StatusCode)
		}
	}
}

func TestRoomsGroupsAndUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	alice := env.chatUser(t, "alice")
	bob := env.chatUser(t, "bob")
	env.hub.HandleLine(ctx, alice, "/creategroup team")
	env.hub.HandleLine(ctx, bob, "/joingroup team")
	token := env.login(t, "alice", "pw")

	resp := env.do(t, http.MethodGet, "/api/rooms", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rooms status %d", resp.StatusCode)
	}
	rooms := decode[[]RoomResponse](t, resp)
	wantRooms := []RoomResponse{
		{ID: 1, Name: "General", Kind: RoomKindChannel},
		{ID: 2, Name: "Study", Kind: RoomKindChannel},
		{ID: 3, Name: "Gaming", Kind: RoomKindChannel},
		{ID: 100, Name: "team", Kind: RoomKindGroup, Members: 2, Online: 2},
	}
	if diff := cmp.Diff(wantRooms, rooms); diff != "" {
		t.Fatalf("rooms mismatch (-want +got):\n%s", diff)
	}

	resp = env.do(t, http.MethodGet, "/api/groups/team", token, nil)
	group := decode[GroupResponse](t, resp)
	wantGroup := GroupResponse{ID: 100, Name: "team", Admins: []string{"alice"}, Members: []string{"alice", "bob"}, Banned: []string{}}
	if diff := cmp.Diff(wantGroup, group); diff != "" {
		t.Fatalf("group mismatch (-want +got):\n%s", diff)
	}

	resp = env.do(t, http.MethodGet, "/api/groups/nope", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown group status %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/users", token, nil)
	users := decode[[]OnlineUserResponse](t, resp)
	wantUsers := []OnlineUserResponse{
		{Name: "alice", Room: 100, RoomName: "team"},
		{Name: "bob", Room: 100, RoomName: "team"},
	}
	if diff := cmp.Diff(wantUsers, users); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
}
