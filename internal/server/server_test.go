package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/registry"
	"github.com/daehan-lim/humanhunter/internal/stats"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWithConfig(t, config.Default())
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	capability := agent.NewScriptedCapability(0, rand.New(rand.NewSource(2)))
	reg := registry.New(capability, stats.NopSink{}, cfg, nil, rand.New(rand.NewSource(1)))
	t.Cleanup(reg.Shutdown)

	srv := New(reg, stats.NopSink{}, cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(t, resp)
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func createRoom(t *testing.T, base string, maxHumans, total int) string {
	t.Helper()
	out := postJSON(t, base+"/api/rooms/create",
		map[string]int{"max_humans": maxHumans, "total_players": total})
	if out["success"] != true {
		t.Fatalf("create failed: %v", out["error"])
	}
	code, _ := out["room_code"].(string)
	if len(code) != 6 {
		t.Fatalf("room_code = %q", code)
	}
	return code
}

func joinRoom(t *testing.T, base, code string) string {
	t.Helper()
	out := postJSON(t, base+"/api/rooms/"+code+"/join", map[string]any{})
	if out["success"] != true {
		t.Fatalf("join failed: %v", out["error"])
	}
	id, _ := out["player_id"].(string)
	return id
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	out := getJSON(t, ts.URL+"/health")
	if out["status"] != "healthy" {
		t.Errorf("health = %v", out)
	}
}

func TestConfigEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	out := getJSON(t, ts.URL+"/config")
	defaults := config.Default()
	if int(out["discussion_time"].(float64)) != defaults.Game.DiscussionSeconds {
		t.Errorf("discussion_time = %v", out["discussion_time"])
	}
	if int(out["num_ai_players"].(float64)) != defaults.Game.DefaultAgents {
		t.Errorf("num_ai_players = %v", out["num_ai_players"])
	}
}

func TestCreateRoomValidation(t *testing.T) {
	_, ts := newTestServer(t)

	out := postJSON(t, ts.URL+"/api/rooms/create",
		map[string]int{"max_humans": 99, "total_players": 100})
	if out["success"] != false {
		t.Errorf("oversized room accepted: %v", out)
	}
}

func TestListRooms(t *testing.T) {
	_, ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		createRoom(t, ts.URL, 2, 6)
	}

	out := getJSON(t, ts.URL+"/api/rooms/list?page=0&per_page=2")
	if int(out["total"].(float64)) != 3 {
		t.Errorf("total = %v, want 3", out["total"])
	}
	rooms, _ := out["rooms"].([]any)
	if len(rooms) != 2 {
		t.Errorf("page size = %d, want 2", len(rooms))
	}
}

func TestRoomInfoUnknown(t *testing.T) {
	_, ts := newTestServer(t)

	out := getJSON(t, ts.URL+"/api/rooms/NOPE99/info")
	if out["success"] != false {
		t.Errorf("unknown room info = %v", out)
	}
}

func TestJoinStartsFullRoom(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 1, 5)

	out := postJSON(t, ts.URL+"/api/rooms/"+code+"/join", map[string]any{})
	if out["success"] != true {
		t.Fatalf("join failed: %v", out["error"])
	}
	if out["can_start"] != true {
		t.Errorf("single-human room did not start on join: %v", out)
	}
	if !strings.HasPrefix(out["player_id"].(string), "Player ") {
		t.Errorf("player_id = %v", out["player_id"])
	}

	// The room is running now; a second join is rejected.
	out = postJSON(t, ts.URL+"/api/rooms/"+code+"/join", map[string]any{})
	if out["success"] != false {
		t.Errorf("join into running game accepted: %v", out)
	}
}

func TestJoinedGameOutlivesRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Game.DiscussionSeconds = 1
	_, ts := newTestServerWithConfig(t, cfg)
	code := createRoom(t, ts.URL, 1, 4)
	joinRoom(t, ts.URL, code)

	// The discussion timer must keep running after the join request
	// completes; a game tied to the request context would sit in
	// Discussion forever.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		out := getJSON(t, ts.URL+"/api/rooms/"+code+"/state")
		if out["phase"] != "Discussion" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("phase never left Discussion after the join request returned")
}

func TestLeaveTerminatesWaitingRoom(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 2, 6)
	id := joinRoom(t, ts.URL, code)

	out := postJSON(t, ts.URL+"/api/rooms/"+code+"/leave",
		map[string]string{"player_id": id})
	if out["success"] != true || out["action"] != "terminated" {
		t.Errorf("leave = %v", out)
	}

	// The room is gone afterwards.
	out = getJSON(t, ts.URL+"/api/rooms/"+code+"/state")
	if out["exists"] != false {
		t.Errorf("terminated room still polls: %v", out)
	}
}

func TestRoomState(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 1, 4)
	joinRoom(t, ts.URL, code)

	out := getJSON(t, ts.URL+"/api/rooms/"+code+"/state")
	if out["exists"] != true {
		t.Fatalf("state = %v", out)
	}
	if out["phase"] != "Discussion" {
		t.Errorf("phase = %v, want Discussion", out["phase"])
	}
	if out["topic"] == "" {
		t.Error("state has no topic")
	}
	players, _ := out["players"].([]any)
	if len(players) != 4 {
		t.Errorf("players = %d, want 4", len(players))
	}
	if int(out["timer"].(float64)) != config.Default().Game.DiscussionSeconds {
		t.Errorf("timer = %v", out["timer"])
	}
}

func TestMessageEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 1, 4)
	id := joinRoom(t, ts.URL, code)

	out := postJSON(t, ts.URL+"/api/rooms/"+code+"/message",
		map[string]string{"player_id": id, "message": "hello everyone"})
	if out["success"] != true {
		t.Fatalf("message rejected: %v", out["error"])
	}

	state := getJSON(t, ts.URL+"/api/rooms/"+code+"/state")
	history, _ := state["chat_history"].([]any)
	found := false
	for _, raw := range history {
		m, _ := raw.(map[string]any)
		if m["sender"] == id && m["message"] == "hello everyone" {
			found = true
		}
	}
	if !found {
		t.Error("posted message missing from state")
	}
}

func TestVoteOutsideVotingPhase(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 1, 4)
	id := joinRoom(t, ts.URL, code)

	out := postJSON(t, ts.URL+"/api/rooms/"+code+"/vote",
		map[string]string{"player_id": id, "vote": "Player 1"})
	if out["success"] != false {
		t.Errorf("vote during discussion accepted: %v", out)
	}
}

func TestRoomStatsBeforeCompletion(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 2, 6)

	out := getJSON(t, ts.URL+"/api/rooms/"+code+"/stats")
	if out["success"] != false {
		t.Errorf("stats for running room = %v", out)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 1, 4)
	id := joinRoom(t, ts.URL, code)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		fmt.Sprintf("/ws/%s/%s", code, id)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Catch-up replay arrives first; drain until the phase frame shows up.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sawPhase := false
	for i := 0; i < 10 && !sawPhase; i++ {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read replay: %v", err)
		}
		if frame["type"] == "phase" {
			sawPhase = true
		}
	}
	if !sawPhase {
		t.Fatal("never received phase frame on connect")
	}

	// A chat frame sent over the socket comes back as a broadcast.
	err = conn.WriteJSON(map[string]any{"type": "message", "message": "anyone here?"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 20; i++ {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read broadcast: %v", err)
		}
		if frame["type"] == "message" && frame["message"] == "anyone here?" {
			return
		}
	}
	t.Fatal("chat message never broadcast back")
}

func TestWebSocketRejectsUnknownPlayer(t *testing.T) {
	_, ts := newTestServer(t)
	code := createRoom(t, ts.URL, 2, 6)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		fmt.Sprintf("/ws/%s/%s", code, "Player 99")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial succeeded for unknown player")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %v, want 403", resp)
	}
}
