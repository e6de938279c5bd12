package dispatcher

import (
	"errors"

	"dicebowl/internal/room"
	"dicebowl/pkg/types"
)

var (
	// ErrUnknownCommand means the command type is not one of the six
	// admin commands. It is the wire vocabulary's sentinel so callers can
	// match it at either boundary.
	ErrUnknownCommand = types.ErrInvalidCommandType

	// ErrInvalidPayload means a triple or range value was malformed or
	// out of bounds. The command mutates nothing.
	ErrInvalidPayload = errors.New("invalid command payload")

	// ErrInvalidTransition is the room's rejection, surfaced unchanged so
	// callers can match it at either boundary.
	ErrInvalidTransition = room.ErrInvalidTransition
)
