package types

import (
	"encoding/json"
)

// Admin command types, spelled exactly as the admin client emits them.
const (
	CommandRoll           = "ROLL"
	CommandOpen           = "OPEN"
	CommandReset          = "RESET"
	CommandSetNextResult  = "SET_NEXT_RESULT"
	CommandSetForcedRange = "SET_FORCED_RANGE"
	CommandGetAllRooms    = "GET_ALL_ROOMS"
)

// Envelope event names shared with the viewer and admin clients.
const (
	EventAdminCommand   = "adminCommand"
	EventRequestState   = "requestState"
	EventStateUpdate    = "stateUpdate"
	EventAllRoomsUpdate = "allRoomsUpdate"
	EventCommandError   = "commandError"
)

// Connection roles. A role is fixed at connect time and never renegotiated.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// Envelope is the outer frame of every message on a connection.
// Data stays raw until the event name tells us what to decode it into.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AdminCommand is an instruction from an admin connection targeting one room.
// Value is a 3-face array for SET_NEXT_RESULT and a {min,max} object for
// SET_FORCED_RANGE; it is absent for every other command type.
type AdminCommand struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// ForcedRange bounds the sum of the next roll, inclusive on both ends.
type ForcedRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RoomSnapshot is the state tuple pushed to viewers of a room.
type RoomSnapshot struct {
	IsOpen    bool   `json:"isOpen"`
	IsRolling bool   `json:"isRolling"`
	Dices     [3]int `json:"dices"`
}

// AdminRoomSnapshot extends the viewer snapshot with presence information
// for the admin dashboard's aggregate view.
type AdminRoomSnapshot struct {
	RoomSnapshot
	IsOnline bool `json:"isOnline"`
}

// CommandError is sent only to the connection whose command was rejected.
type CommandError struct {
	Command string `json:"command,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message"`
}
