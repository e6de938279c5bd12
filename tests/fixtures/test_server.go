package fixtures

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"dicebowl/internal/api"
	"dicebowl/internal/dice"
	"dicebowl/internal/dispatcher"
	"dicebowl/internal/hub"
	"dicebowl/internal/room"
	"dicebowl/internal/websocket"
	"dicebowl/pkg/types"
)

// TestRollDuration keeps roll animations short so settle transitions arrive
// well inside test timeouts.
const TestRollDuration = 30 * time.Millisecond

// TestServer runs the full stack, registry through HTTP, on an ephemeral
// port.
type TestServer struct {
	URL string

	hub  *hub.Hub
	http *httptest.Server
}

// StartServer assembles and starts the complete server. Everything stops on
// test cleanup.
func StartServer(t *testing.T) *TestServer {
	t.Helper()

	wsRegistry := websocket.NewRegistry()
	var broadcastHub *hub.Hub
	rooms := room.NewRegistry(dice.New(&dice.Config{Seed: time.Now().UnixNano()}), TestRollDuration,
		func(roomID string, snap types.RoomSnapshot) { broadcastHub.RoomChanged(roomID, snap) })
	disp := dispatcher.New(rooms)
	broadcastHub = hub.New(wsRegistry, disp)

	if err := broadcastHub.Start(context.Background()); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}

	wsHandler := websocket.NewHandler(broadcastHub, websocket.HandlerConfig{
		WriteTimeout: time.Second,
		ReadTimeout:  10 * time.Second,
		PingInterval: 5 * time.Second,
		BufferSize:   100,
	})
	srv := httptest.NewServer(api.New(wsHandler.HandleWebSocket, wsRegistry, ""))

	t.Cleanup(func() {
		srv.Close()
		_ = broadcastHub.Stop()
	})
	return &TestServer{URL: srv.URL, hub: broadcastHub, http: srv}
}

// ConnectClient builds, connects, and registers cleanup for a test client.
func (ts *TestServer) ConnectClient(t *testing.T, role, roomID string) *TestClient {
	t.Helper()

	client := NewTestClient(role, roomID, ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("failed to connect %s client: %v", role, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
