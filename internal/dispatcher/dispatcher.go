package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"dicebowl/internal/dice"
	"dicebowl/internal/room"
	"dicebowl/pkg/types"
)

// Dispatcher validates admin commands and applies them to rooms. It is the
// sole owner of the room registry: nothing outside the dispatcher holds a
// mutable room reference. Commands against one room are serialized by that
// room's lock; commands against distinct rooms proceed concurrently.
type Dispatcher struct {
	rooms *room.Registry
}

// Result is the outcome of an accepted command. Exactly one of Snapshot and
// AllRooms is set, depending on the command kind.
type Result struct {
	RoomID   string
	Snapshot *types.RoomSnapshot
	AllRooms map[string]types.AdminRoomSnapshot
}

// New creates a dispatcher over the given registry.
func New(rooms *room.Registry) *Dispatcher {
	return &Dispatcher{rooms: rooms}
}

// Dispatch validates and applies one admin command. Rejected commands
// mutate no state; payloads are checked before the target room is even
// created, so a malformed command against an unseen id leaves no trace.
func (d *Dispatcher) Dispatch(cmd types.AdminCommand) (*Result, error) {
	if !types.IsValidCommandType(cmd.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	if cmd.Type == types.CommandGetAllRooms {
		return &Result{AllRooms: d.AllRooms()}, nil
	}

	if !types.IsValidRoomID(cmd.RoomID) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, types.ErrInvalidRoomID)
	}

	var (
		snap types.RoomSnapshot
		err  error
	)
	switch cmd.Type {
	case types.CommandRoll:
		snap, err = d.Roll(cmd.RoomID)
	case types.CommandOpen:
		snap, err = d.Open(cmd.RoomID)
	case types.CommandReset:
		snap, err = d.Reset(cmd.RoomID)
	case types.CommandSetNextResult:
		var values []int
		if jsonErr := json.Unmarshal(cmd.Value, &values); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, jsonErr)
		}
		snap, err = d.SetNextResult(cmd.RoomID, values)
	case types.CommandSetForcedRange:
		var fr types.ForcedRange
		if jsonErr := json.Unmarshal(cmd.Value, &fr); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, jsonErr)
		}
		snap, err = d.SetForcedRange(cmd.RoomID, fr)
	}
	if err != nil {
		log.Debug().Str("room", cmd.RoomID).Str("command", cmd.Type).Err(err).Msg("command rejected")
		return nil, err
	}
	return &Result{RoomID: cmd.RoomID, Snapshot: &snap}, nil
}

// Roll starts the shake window on a room, creating it on first reference.
func (d *Dispatcher) Roll(roomID string) (types.RoomSnapshot, error) {
	return d.rooms.GetOrCreate(roomID).Roll()
}

// Open reveals a room's dice.
func (d *Dispatcher) Open(roomID string) (types.RoomSnapshot, error) {
	return d.rooms.GetOrCreate(roomID).Open()
}

// Reset forces a room back to CLOSED.
func (d *Dispatcher) Reset(roomID string) (types.RoomSnapshot, error) {
	return d.rooms.GetOrCreate(roomID).Reset()
}

// SetNextResult pins a room's next roll to an exact triple. The payload is
// validated before the room is touched.
func (d *Dispatcher) SetNextResult(roomID string, values []int) (types.RoomSnapshot, error) {
	if err := types.ValidateTriple(values); err != nil {
		return types.RoomSnapshot{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return d.rooms.GetOrCreate(roomID).SetNextResult(dice.FromSlice(values))
}

// SetForcedRange pins the sum of a room's next roll into an inclusive range.
func (d *Dispatcher) SetForcedRange(roomID string, fr types.ForcedRange) (types.RoomSnapshot, error) {
	if err := fr.Validate(); err != nil {
		return types.RoomSnapshot{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return d.rooms.GetOrCreate(roomID).SetForcedRange(fr.Min, fr.Max)
}

// AllRooms takes a consistent point-in-time snapshot of every room in the
// registry. Read-only: triggers no broadcast.
func (d *Dispatcher) AllRooms() map[string]types.AdminRoomSnapshot {
	return d.rooms.SnapshotAll()
}

// RoomState returns a room's current snapshot for a direct reply, creating
// the room on first reference so a viewer joining a fresh id sees the
// default CLOSED state.
func (d *Dispatcher) RoomState(roomID string) types.RoomSnapshot {
	return d.rooms.GetOrCreate(roomID).Snapshot()
}

// ViewerJoined records a new subscriber and returns the snapshot for the
// immediate push to that viewer.
func (d *Dispatcher) ViewerJoined(roomID string) types.RoomSnapshot {
	return d.rooms.GetOrCreate(roomID).ViewerJoined()
}

// ViewerLeft records a departed subscriber. A disconnect racing room
// creation is a no-op.
func (d *Dispatcher) ViewerLeft(roomID string) {
	if r, ok := d.rooms.Get(roomID); ok {
		r.ViewerLeft()
	}
}
