package websocket

import (
	"sync"

	"dicebowl/pkg/types"
)

// Registry tracks live connections, partitioned by role. Viewers are
// indexed per room for room-scoped fan-out; admins are held flat because
// every admin receives every aggregate broadcast.
type Registry struct {
	mu          sync.RWMutex
	roomViewers map[string]map[string]*Connection // roomID -> connID -> conn
	admins      map[string]*Connection            // connID -> conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		roomViewers: make(map[string]map[string]*Connection),
		admins:      make(map[string]*Connection),
	}
}

// Register adds a connection to its role partition.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch conn.Role() {
	case types.RoleAdmin:
		r.admins[conn.ID()] = conn
	default:
		viewers := r.roomViewers[conn.RoomID()]
		if viewers == nil {
			viewers = make(map[string]*Connection)
			r.roomViewers[conn.RoomID()] = viewers
		}
		viewers[conn.ID()] = conn
	}
	return nil
}

// Unregister removes a connection. Idempotent; empty room partitions are
// dropped so the map does not grow with dead room ids.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch conn.Role() {
	case types.RoleAdmin:
		delete(r.admins, conn.ID())
	default:
		if viewers, ok := r.roomViewers[conn.RoomID()]; ok {
			delete(viewers, conn.ID())
			if len(viewers) == 0 {
				delete(r.roomViewers, conn.RoomID())
			}
		}
	}
}

// RoomSubscribers returns every connection that should receive a room's
// state updates: its viewers, plus any admin that connected with the same
// room id and is driving that room from the game view.
func (r *Registry) RoomSubscribers(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Connection
	for _, conn := range r.roomViewers[roomID] {
		conns = append(conns, conn)
	}
	for _, conn := range r.admins {
		if conn.RoomID() == roomID {
			conns = append(conns, conn)
		}
	}
	return conns
}

// Admins returns every admin connection.
func (r *Registry) Admins() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.admins))
	for _, conn := range r.admins {
		conns = append(conns, conn)
	}
	return conns
}

// ViewerCount returns the number of viewer connections in one room.
func (r *Registry) ViewerCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomViewers[roomID])
}

// Stats summarizes the registry for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	viewers := 0
	for _, room := range r.roomViewers {
		viewers += len(room)
	}
	return map[string]int{
		"viewers":      viewers,
		"admins":       len(r.admins),
		"viewed_rooms": len(r.roomViewers),
	}
}
