package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dicebowl/internal/dice"
	"dicebowl/pkg/types"
)

// ChangeFunc is invoked for every accepted state transition, including the
// timer-driven roll settle, in the room's serialized transition order. It
// runs with the room lock held and must not block or call back into the
// room; the hub hands the snapshot to a buffered channel and returns.
type ChangeFunc func(roomID string, snapshot types.RoomSnapshot)

// Room is the per-room state machine. All field access goes through the
// mutex, which is the room's serialization point: two commands against the
// same room never interleave, and the settle timer re-enters through the
// same lock. isOpen and isRolling are never true simultaneously.
type Room struct {
	mu sync.Mutex

	id          string
	isOpen      bool
	isRolling   bool
	dices       dice.Triple
	constraint  dice.Constraint
	viewerCount int
	version     uint64

	// rollGen identifies the roll a pending settle timer belongs to, so a
	// timer surviving a RESET/ROLL sequence cannot settle the wrong roll.
	rollGen uint64

	roller       *dice.Roller
	rollDuration time.Duration
	onChange     ChangeFunc
}

func newRoom(id string, roller *dice.Roller, rollDuration time.Duration, onChange ChangeFunc) *Room {
	return &Room{
		id:           id,
		dices:        dice.DefaultTriple(),
		roller:       roller,
		rollDuration: rollDuration,
		onChange:     onChange,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// Roll resolves the pending constraint into new dice, closes the lid, and
// starts the shake window. The constraint is consumed. Valid from CLOSED or
// REVEALED; rejected while a roll is already in progress.
func (r *Room) Roll() (types.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRolling {
		return types.RoomSnapshot{}, fmt.Errorf("%w: roll already in progress", ErrInvalidTransition)
	}

	r.dices = r.roller.Resolve(r.constraint)
	r.constraint = dice.None()
	r.isOpen = false
	r.isRolling = true
	r.version++
	r.rollGen++
	gen := r.rollGen
	snap := r.snapshotLocked()

	log.Debug().Str("room", r.id).Ints("dices", snap.Dices[:]).Msg("roll started")

	time.AfterFunc(r.rollDuration, func() { r.settle(gen) })
	r.notify(snap)
	return snap, nil
}

// settle is the timer-driven ROLLING -> CLOSED transition. It only ever
// clears isRolling; isOpen keeps whatever value was set concurrently. If a
// RESET already closed the room, or the generation no longer matches, the
// transition was superseded and no second broadcast is sent.
func (r *Room) settle(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isRolling || r.rollGen != gen {
		return
	}
	r.isRolling = false
	r.version++
	snap := r.snapshotLocked()

	log.Debug().Str("room", r.id).Msg("roll settled")
	r.notify(snap)
}

// Open reveals the dice. Valid from CLOSED; rejected while rolling. Opening
// an already open room is a pure no-op, not an error, and broadcasts
// nothing.
func (r *Room) Open() (types.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRolling {
		return types.RoomSnapshot{}, fmt.Errorf("%w: cannot open while rolling", ErrInvalidTransition)
	}
	if r.isOpen {
		return r.snapshotLocked(), nil
	}
	r.isOpen = true
	r.version++
	snap := r.snapshotLocked()

	log.Debug().Str("room", r.id).Msg("lid opened")
	r.notify(snap)
	return snap, nil
}

// Reset forces the room back to CLOSED from any state. The last rolled dice
// persist as the closed preview and a pending constraint is kept.
func (r *Room) Reset() (types.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isOpen = false
	r.isRolling = false
	r.version++
	snap := r.snapshotLocked()

	log.Debug().Str("room", r.id).Msg("room reset")
	r.notify(snap)
	return snap, nil
}

// SetNextResult pins the next roll to an exact triple. Only valid while the
// room is CLOSED. The visible dice are overwritten immediately so the
// closed-lid preview matches what the next roll will produce.
func (r *Room) SetNextResult(t dice.Triple) (types.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isOpen || r.isRolling {
		return types.RoomSnapshot{}, fmt.Errorf("%w: next result can only be set while closed", ErrInvalidTransition)
	}
	r.constraint = dice.Exact(t)
	r.dices = t
	r.version++
	snap := r.snapshotLocked()

	log.Debug().Str("room", r.id).Ints("dices", t.Slice()).Msg("next result set")
	r.notify(snap)
	return snap, nil
}

// SetForcedRange pins the next roll's sum into [min,max]. Only valid while
// CLOSED. The range is resolved once immediately to give viewers and admins
// a representative preview; the constraint itself stays pending, and the
// next roll re-resolves the range independently.
func (r *Room) SetForcedRange(min, max int) (types.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isOpen || r.isRolling {
		return types.RoomSnapshot{}, fmt.Errorf("%w: forced range can only be set while closed", ErrInvalidTransition)
	}
	constraint := dice.Range(min, max)
	r.constraint = constraint
	r.dices = r.roller.Resolve(constraint)
	r.version++
	snap := r.snapshotLocked()

	log.Debug().Str("room", r.id).Int("min", min).Int("max", max).Msg("forced range set")
	r.notify(snap)
	return snap, nil
}

// ViewerJoined increments the subscriber count and returns the room's
// current snapshot for the immediate single push to the new viewer.
func (r *Room) ViewerJoined() types.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewerCount++
	return r.snapshotLocked()
}

// ViewerLeft decrements the subscriber count.
func (r *Room) ViewerLeft() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.viewerCount > 0 {
		r.viewerCount--
	}
}

// Snapshot returns the viewer-facing state tuple.
func (r *Room) Snapshot() types.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// AdminSnapshot returns the snapshot plus presence for the aggregate view.
func (r *Room) AdminSnapshot() types.AdminRoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.AdminRoomSnapshot{
		RoomSnapshot: r.snapshotLocked(),
		IsOnline:     r.viewerCount > 0,
	}
}

// ViewerCount returns the number of subscribed viewer connections.
func (r *Room) ViewerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewerCount
}

// Version returns the monotonic transition counter.
func (r *Room) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

func (r *Room) snapshotLocked() types.RoomSnapshot {
	return types.RoomSnapshot{
		IsOpen:    r.isOpen,
		IsRolling: r.isRolling,
		Dices:     [3]int(r.dices),
	}
}

func (r *Room) notify(snap types.RoomSnapshot) {
	if r.onChange != nil {
		r.onChange(r.id, snap)
	}
}
