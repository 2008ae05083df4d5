package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"parley/server/internal/auth"
	"parley/server/internal/core"
	"parley/server/internal/protocol"
	"parley/server/internal/ws"
)

func newTestServer(t *testing.T) (*core.Registry, *httptest.Server) {
	t.Helper()

	registry := core.NewRegistry()
	wsHandler := ws.NewHandler(registry, auth.NewVerifier("test-secret"), nil)
	srv := New(registry, wsHandler)
	httpServer := httptest.NewServer(srv.Echo())
	t.Cleanup(httpServer.Close)
	return registry, httpServer
}

func TestHealthEndpoint(t *testing.T) {
	registry, httpServer := newTestServer(t)
	registry.Connect("alice", "Alice")
	registry.Connect("alice", "Alice")

	resp, err := http.Get(httpServer.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
		Online   int    `json:"online_users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Sessions != 2 || body.Online != 1 {
		t.Fatalf("unexpected health body: %#v", body)
	}
}

func TestStateEndpoint(t *testing.T) {
	registry, httpServer := newTestServer(t)
	if _, err := registry.CreateRoom(core.RoomSpec{ID: "general", Name: "General", MaxUsers: 500, CreatedBy: "system"}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	registry.Join("general", "alice")
	registry.Append("general", "alice", "Alice", "hi", core.MessageTypeText)
	registry.Connect("alice", "Alice")

	resp, err := http.Get(httpServer.URL + "/api/state")
	if err != nil {
		t.Fatalf("get /api/state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Users []protocol.OnlineUser `json:"users"`
		Rooms []protocol.Room       `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Users) != 1 || body.Users[0].UserID != "alice" {
		t.Fatalf("unexpected users: %#v", body.Users)
	}
	if len(body.Rooms) != 1 {
		t.Fatalf("unexpected rooms: %#v", body.Rooms)
	}
	room := body.Rooms[0]
	if room.ID != "general" || room.MaxUsers != 500 || room.MemberCount != 1 || room.MessageCount != 1 {
		t.Fatalf("unexpected room: %#v", room)
	}
	if room.CreatedTS == 0 || !room.IsActive {
		t.Fatalf("room metadata missing: %#v", room)
	}
}

func TestStateEndpointEmpty(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, err := http.Get(httpServer.URL + "/api/state")
	if err != nil {
		t.Fatalf("get /api/state: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Users []protocol.OnlineUser `json:"users"`
		Rooms []protocol.Room       `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Users == nil {
		t.Fatal("users must encode as an empty array, not null")
	}
	if len(body.Users) != 0 || len(body.Rooms) != 0 {
		t.Fatalf("expected empty state, got %#v", body)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, err := http.Get(httpServer.URL + "/api/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}
