package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"dicebowl/internal/dice"
	"dicebowl/internal/dispatcher"
	"dicebowl/internal/room"
	"dicebowl/internal/websocket"
	"dicebowl/pkg/types"
)

const testRollDuration = 20 * time.Millisecond

var testUpgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestHub wires a real registry, dispatcher and room set, exactly as the
// application does, and starts the hub.
func newTestHub(t *testing.T) *Hub {
	t.Helper()

	var h *Hub
	rooms := room.NewRegistry(dice.New(&dice.Config{Seed: 40}), testRollDuration,
		func(roomID string, snap types.RoomSnapshot) { h.RoomChanged(roomID, snap) })
	h = New(websocket.NewRegistry(), dispatcher.New(rooms))

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

// newTestConn dials a real websocket through httptest and wraps the server
// side, so hub pushes land on an actual client.
func newTestConn(t *testing.T, id, role, roomID string) (*websocket.Connection, *gws.Conn) {
	t.Helper()

	serverConnCh := make(chan *gws.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConnCh <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	var serverConn *gws.Conn
	select {
	case serverConn = <-serverConnCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server side connection never arrived")
	}

	conn := websocket.NewConnection(serverConn, id, role, roomID, 32, time.Second)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, client
}

// readUntil reads envelopes until one matches, skipping interleaved
// broadcasts the test does not care about.
func readUntil(t *testing.T, client *gws.Conn, match func(types.Envelope) bool) types.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = client.SetReadDeadline(deadline)
		var env types.Envelope
		if err := client.ReadJSON(&env); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if match(env) {
			return env
		}
	}
	t.Fatal("expected envelope never arrived")
	return types.Envelope{}
}

func decodeSnapshot(t *testing.T, env types.Envelope) types.RoomSnapshot {
	t.Helper()
	var snap types.RoomSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func decodeAggregate(t *testing.T, env types.Envelope) map[string]types.AdminRoomSnapshot {
	t.Helper()
	var all map[string]types.AdminRoomSnapshot
	if err := json.Unmarshal(env.Data, &all); err != nil {
		t.Fatalf("failed to decode aggregate: %v", err)
	}
	return all
}

func TestHubStartStop(t *testing.T) {
	wsRegistry := websocket.NewRegistry()
	rooms := room.NewRegistry(dice.New(&dice.Config{Seed: 41}), testRollDuration, nil)
	h := New(wsRegistry, dispatcher.New(rooms))

	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := h.Start(ctx); err != ErrHubAlreadyRunning {
		t.Errorf("expected ErrHubAlreadyRunning, got %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if err := h.Stop(); err != ErrHubNotRunning {
		t.Errorf("expected ErrHubNotRunning, got %v", err)
	}
}

func TestHubRestartDeliversBroadcasts(t *testing.T) {
	h := newTestHub(t)
	if err := h.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	conn, client := newTestConn(t, "v1", types.RoleViewer, "room-a")
	h.HandleConnect(conn)
	readUntil(t, client, func(e types.Envelope) bool { return e.Event == types.EventStateUpdate })

	// Fan-out runs on the restarted goroutine.
	h.RoomChanged("room-a", types.RoomSnapshot{IsOpen: true, Dices: [3]int{2, 2, 2}})
	readUntil(t, client, func(e types.Envelope) bool {
		return e.Event == types.EventStateUpdate && decodeSnapshot(t, e).IsOpen
	})
}

func TestViewerConnectReceivesSnapshot(t *testing.T) {
	h := newTestHub(t)
	conn, client := newTestConn(t, "v1", types.RoleViewer, "room-a")

	h.HandleConnect(conn)

	env := readUntil(t, client, func(e types.Envelope) bool { return e.Event == types.EventStateUpdate })
	snap := decodeSnapshot(t, env)
	if snap.IsOpen || snap.IsRolling || snap.Dices != [3]int{1, 1, 1} {
		t.Errorf("fresh room snapshot mismatch: %+v", snap)
	}
}

func TestAdminConnectReceivesAggregate(t *testing.T) {
	h := newTestHub(t)

	// Seed one watched room before the admin arrives.
	viewer, _ := newTestConn(t, "v1", types.RoleViewer, "room-a")
	h.HandleConnect(viewer)

	admin, adminClient := newTestConn(t, "a1", types.RoleAdmin, "")
	h.HandleConnect(admin)

	env := readUntil(t, adminClient, func(e types.Envelope) bool { return e.Event == types.EventAllRoomsUpdate })
	all := decodeAggregate(t, env)
	if entry, ok := all["room-a"]; !ok || !entry.IsOnline {
		t.Errorf("aggregate should list room-a as online, got %+v", all)
	}
}

func TestAcceptedCommandBroadcastsToViewersAndAdmins(t *testing.T) {
	h := newTestHub(t)

	viewer, viewerClient := newTestConn(t, "v1", types.RoleViewer, "room-a")
	admin, adminClient := newTestConn(t, "a1", types.RoleAdmin, "")
	h.HandleConnect(viewer)
	h.HandleConnect(admin)

	h.HandleAdminCommand(admin, types.AdminCommand{
		Type:   types.CommandSetNextResult,
		RoomID: "room-a",
		Value:  json.RawMessage(`[4,4,4]`),
	})
	h.HandleAdminCommand(admin, types.AdminCommand{Type: types.CommandRoll, RoomID: "room-a"})

	// The viewer sees the roll with the forced dice.
	env := readUntil(t, viewerClient, func(e types.Envelope) bool {
		return e.Event == types.EventStateUpdate && decodeSnapshot(t, e).IsRolling
	})
	if snap := decodeSnapshot(t, env); snap.Dices != [3]int{4, 4, 4} {
		t.Errorf("forced roll should broadcast [4,4,4], got %v", snap.Dices)
	}

	// The timer settles the room back to CLOSED with no further command.
	env = readUntil(t, viewerClient, func(e types.Envelope) bool {
		snap := decodeSnapshot(t, e)
		return e.Event == types.EventStateUpdate && !snap.IsRolling
	})
	if snap := decodeSnapshot(t, env); snap.IsOpen {
		t.Error("settle should land in CLOSED, not REVEALED")
	}

	// Admins see the aggregate reflecting the same room.
	readUntil(t, adminClient, func(e types.Envelope) bool {
		if e.Event != types.EventAllRoomsUpdate {
			return false
		}
		entry, ok := decodeAggregate(t, e)["room-a"]
		return ok && entry.Dices == [3]int{4, 4, 4}
	})
}

func TestRejectedCommandRepliesToSenderOnly(t *testing.T) {
	h := newTestHub(t)

	viewer, viewerClient := newTestConn(t, "v1", types.RoleViewer, "room-a")
	admin, adminClient := newTestConn(t, "a1", types.RoleAdmin, "")
	h.HandleConnect(viewer)
	h.HandleConnect(admin)

	// Drain the viewer's join snapshot.
	readUntil(t, viewerClient, func(e types.Envelope) bool { return e.Event == types.EventStateUpdate })

	h.HandleAdminCommand(admin, types.AdminCommand{
		Type:   types.CommandSetNextResult,
		RoomID: "room-a",
		Value:  json.RawMessage(`[9,9,9]`),
	})

	env := readUntil(t, adminClient, func(e types.Envelope) bool { return e.Event == types.EventCommandError })
	var ce types.CommandError
	if err := json.Unmarshal(env.Data, &ce); err != nil {
		t.Fatalf("failed to decode command error: %v", err)
	}
	if ce.Command != types.CommandSetNextResult || ce.RoomID != "room-a" {
		t.Errorf("unexpected command error %+v", ce)
	}

	// The rejected command broadcasts nothing: the viewer stays silent.
	_ = viewerClient.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray types.Envelope
	if err := viewerClient.ReadJSON(&stray); err == nil {
		t.Errorf("viewer received %+v after a rejected command", stray)
	}
}

func TestGetAllRoomsRepliesDirectly(t *testing.T) {
	h := newTestHub(t)

	viewer, _ := newTestConn(t, "v1", types.RoleViewer, "room-a")
	admin, adminClient := newTestConn(t, "a1", types.RoleAdmin, "")
	h.HandleConnect(viewer)
	h.HandleConnect(admin)

	h.HandleAdminCommand(admin, types.AdminCommand{Type: types.CommandGetAllRooms})

	readUntil(t, adminClient, func(e types.Envelope) bool {
		if e.Event != types.EventAllRoomsUpdate {
			return false
		}
		_, ok := decodeAggregate(t, e)["room-a"]
		return ok
	})
}

func TestViewerDisconnectUpdatesPresence(t *testing.T) {
	h := newTestHub(t)

	viewer, _ := newTestConn(t, "v1", types.RoleViewer, "room-a")
	admin, adminClient := newTestConn(t, "a1", types.RoleAdmin, "")
	h.HandleConnect(viewer)
	h.HandleConnect(admin)

	readUntil(t, adminClient, func(e types.Envelope) bool {
		if e.Event != types.EventAllRoomsUpdate {
			return false
		}
		entry, ok := decodeAggregate(t, e)["room-a"]
		return ok && entry.IsOnline
	})

	h.HandleDisconnect(viewer)

	readUntil(t, adminClient, func(e types.Envelope) bool {
		if e.Event != types.EventAllRoomsUpdate {
			return false
		}
		entry, ok := decodeAggregate(t, e)["room-a"]
		return ok && !entry.IsOnline
	})
}

func TestRoomScopedAdminReceivesStateUpdates(t *testing.T) {
	h := newTestHub(t)

	admin, adminClient := newTestConn(t, "a1", types.RoleAdmin, "room-a")
	h.HandleConnect(admin)

	// Room-scoped admins get the room snapshot on connect.
	readUntil(t, adminClient, func(e types.Envelope) bool { return e.Event == types.EventStateUpdate })

	h.HandleAdminCommand(admin, types.AdminCommand{Type: types.CommandOpen, RoomID: "room-a"})
	env := readUntil(t, adminClient, func(e types.Envelope) bool {
		return e.Event == types.EventStateUpdate && decodeSnapshot(t, e).IsOpen
	})
	if snap := decodeSnapshot(t, env); snap.IsRolling {
		t.Errorf("open room should not be rolling: %+v", snap)
	}
}

func TestRequestStateRepliesDirectly(t *testing.T) {
	h := newTestHub(t)

	viewer, viewerClient := newTestConn(t, "v1", types.RoleViewer, "room-a")
	h.HandleConnect(viewer)
	readUntil(t, viewerClient, func(e types.Envelope) bool { return e.Event == types.EventStateUpdate })

	h.HandleRequestState(viewer)
	readUntil(t, viewerClient, func(e types.Envelope) bool { return e.Event == types.EventStateUpdate })
}
