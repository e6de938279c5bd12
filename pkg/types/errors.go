package types

import "errors"

var (
	ErrInvalidFace        = errors.New("die face must be between 1 and 6")
	ErrInvalidTriple      = errors.New("dice value must be exactly 3 faces")
	ErrInvalidRange       = errors.New("forced range must satisfy 3 <= min <= max <= 18")
	ErrInvalidRoomID      = errors.New("invalid room id")
	ErrInvalidRole        = errors.New("role must be 'viewer' or 'admin'")
	ErrInvalidCommandType = errors.New("unknown admin command type")
)
