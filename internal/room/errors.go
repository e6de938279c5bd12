package room

import "errors"

var (
	// ErrInvalidTransition means a command is not valid in the room's
	// current state, e.g. OPEN while the roll animation is running.
	ErrInvalidTransition = errors.New("command not valid in current room state")
)
