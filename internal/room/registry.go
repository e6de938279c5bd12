package room

import (
	"sync"
	"time"

	"dicebowl/internal/dice"
	"dicebowl/pkg/types"
)

// Registry is the process-wide collection of rooms, keyed by room id.
// Rooms are created lazily on first reference and kept for the lifetime of
// the process: a room is a few dozen bytes, ids are short operator-chosen
// strings, and eviction would race with an admin observing a room whose
// viewer count just hit zero.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	roller       *dice.Roller
	rollDuration time.Duration
	onChange     ChangeFunc
}

// NewRegistry creates an empty registry. onChange may be nil; when set it is
// installed on every room the registry creates.
func NewRegistry(roller *dice.Roller, rollDuration time.Duration, onChange ChangeFunc) *Registry {
	return &Registry{
		rooms:        make(map[string]*Room),
		roller:       roller,
		rollDuration: rollDuration,
		onChange:     onChange,
	}
}

// GetOrCreate returns the room for id, creating it in default CLOSED state
// on first reference.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[id]; ok {
		return r
	}
	r = newRoom(id, g.roller, g.rollDuration, g.onChange)
	g.rooms[id] = r
	return r
}

// Get returns the room for id without creating it.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// SnapshotAll takes a point-in-time aggregate snapshot of every room that
// has ever been referenced.
func (g *Registry) SnapshotAll() map[string]types.AdminRoomSnapshot {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	// Room snapshots are taken outside the registry lock so a slow room
	// mutex never blocks room creation.
	all := make(map[string]types.AdminRoomSnapshot, len(rooms))
	for _, r := range rooms {
		all[r.ID()] = r.AdminSnapshot()
	}
	return all
}

// Len returns the number of rooms ever created.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
