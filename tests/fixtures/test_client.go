package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dicebowl/pkg/types"
)

// TestClient is a websocket client for end to end tests. It connects with a
// role and optional room id, collects every envelope the server pushes, and
// lets tests wait for specific events.
type TestClient struct {
	Role      string
	RoomID    string
	ServerURL string

	conn     *websocket.Conn
	messages chan types.Envelope
	errors   chan error
	done     chan struct{}

	mu        sync.Mutex
	closed    bool
	connected bool
}

// NewTestClient builds an unconnected client for the given server URL.
func NewTestClient(role, roomID, serverURL string) *TestClient {
	return &TestClient{
		Role:      role,
		RoomID:    roomID,
		ServerURL: serverURL,
		messages:  make(chan types.Envelope, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
}

// Connect dials the server's /ws endpoint with the client's role and room.
func (tc *TestClient) Connect(ctx context.Context) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.connected {
		return fmt.Errorf("client already connected")
	}

	u, err := url.Parse(tc.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	query := u.Query()
	if tc.Role != "" {
		query.Set("role", tc.Role)
	}
	if tc.RoomID != "" {
		query.Set("room", tc.RoomID)
	}
	u.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	tc.conn = conn
	tc.connected = true
	go tc.readLoop()
	return nil
}

func (tc *TestClient) readLoop() {
	defer close(tc.done)
	for {
		var env types.Envelope
		if err := tc.conn.ReadJSON(&env); err != nil {
			tc.mu.Lock()
			closed := tc.closed
			tc.mu.Unlock()
			if !closed {
				select {
				case tc.errors <- err:
				default:
				}
			}
			return
		}
		select {
		case tc.messages <- env:
		default:
			// Drop when the test is not draining; tests that care use WaitFor.
		}
	}
}

// SendCommand sends an adminCommand envelope.
func (tc *TestClient) SendCommand(cmd types.AdminCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return tc.send(types.Envelope{Event: types.EventAdminCommand, Data: data})
}

// RequestState asks the server for a fresh snapshot of the client's room.
func (tc *TestClient) RequestState() error {
	return tc.send(types.Envelope{Event: types.EventRequestState})
}

// SendRaw writes an arbitrary payload, for malformed traffic tests.
func (tc *TestClient) SendRaw(payload []byte) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.connected {
		return fmt.Errorf("client not connected")
	}
	return tc.conn.WriteMessage(websocket.TextMessage, payload)
}

func (tc *TestClient) send(env types.Envelope) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.connected {
		return fmt.Errorf("client not connected")
	}
	return tc.conn.WriteJSON(env)
}

// WaitFor blocks until an envelope with the given event arrives that
// satisfies match (nil matches any), or the timeout expires.
func (tc *TestClient) WaitFor(event string, match func(types.Envelope) bool, timeout time.Duration) (types.Envelope, error) {
	deadline := time.After(timeout)
	for {
		select {
		case env := <-tc.messages:
			if env.Event != event {
				continue
			}
			if match == nil || match(env) {
				return env, nil
			}
		case err := <-tc.errors:
			return types.Envelope{}, fmt.Errorf("connection error while waiting for %s: %w", event, err)
		case <-deadline:
			return types.Envelope{}, fmt.Errorf("timed out waiting for %s", event)
		}
	}
}

// WaitForState waits for a stateUpdate matching the snapshot predicate and
// returns the decoded snapshot.
func (tc *TestClient) WaitForState(match func(types.RoomSnapshot) bool, timeout time.Duration) (types.RoomSnapshot, error) {
	var snap types.RoomSnapshot
	_, err := tc.WaitFor(types.EventStateUpdate, func(env types.Envelope) bool {
		var s types.RoomSnapshot
		if json.Unmarshal(env.Data, &s) != nil {
			return false
		}
		if match != nil && !match(s) {
			return false
		}
		snap = s
		return true
	}, timeout)
	return snap, err
}

// WaitForAllRooms waits for an allRoomsUpdate matching the aggregate
// predicate and returns the decoded map.
func (tc *TestClient) WaitForAllRooms(match func(map[string]types.AdminRoomSnapshot) bool, timeout time.Duration) (map[string]types.AdminRoomSnapshot, error) {
	var all map[string]types.AdminRoomSnapshot
	_, err := tc.WaitFor(types.EventAllRoomsUpdate, func(env types.Envelope) bool {
		var a map[string]types.AdminRoomSnapshot
		if json.Unmarshal(env.Data, &a) != nil {
			return false
		}
		if match != nil && !match(a) {
			return false
		}
		all = a
		return true
	}, timeout)
	return all, err
}

// ExpectSilence fails with an error if any envelope arrives within the window.
func (tc *TestClient) ExpectSilence(window time.Duration) error {
	select {
	case env := <-tc.messages:
		return fmt.Errorf("unexpected %s envelope", env.Event)
	case <-time.After(window):
		return nil
	}
}

// Close tears down the connection.
func (tc *TestClient) Close() error {
	tc.mu.Lock()
	if tc.closed {
		tc.mu.Unlock()
		return nil
	}
	tc.closed = true
	connected := tc.connected
	tc.mu.Unlock()

	if !connected {
		return nil
	}
	err := tc.conn.Close()
	select {
	case <-tc.done:
	case <-time.After(time.Second):
	}
	return err
}
