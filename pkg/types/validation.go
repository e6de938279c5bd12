package types

const (
	// MinFace and MaxFace bound a single die face.
	MinFace = 1
	MaxFace = 6

	// MinSum and MaxSum bound the sum of a triple, and therefore the
	// legal endpoints of a forced range.
	MinSum = 3
	MaxSum = 18

	maxRoomIDLength = 64
)

// IsValidFace reports whether v is a legal die face.
func IsValidFace(v int) bool {
	return v >= MinFace && v <= MaxFace
}

// ValidateTriple checks a wire-level dice value: exactly three faces,
// each in [1,6].
func ValidateTriple(values []int) error {
	if len(values) != 3 {
		return ErrInvalidTriple
	}
	for _, v := range values {
		if !IsValidFace(v) {
			return ErrInvalidFace
		}
	}
	return nil
}

// Validate checks that a forced range is well-formed.
func (r ForcedRange) Validate() error {
	if r.Min < MinSum || r.Max > MaxSum || r.Min > r.Max {
		return ErrInvalidRange
	}
	return nil
}

// IsValidRoomID checks a room identifier. The core treats any short
// printable string as a valid, possibly-new, room id; the bounds only keep
// pathological ids out of the registry and out of log lines.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > maxRoomIDLength {
		return false
	}
	for _, c := range roomID {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// IsValidRole reports whether role is one of the two connection roles.
func IsValidRole(role string) bool {
	return role == RoleViewer || role == RoleAdmin
}

// IsValidCommandType reports whether t is one of the six admin commands.
func IsValidCommandType(t string) bool {
	switch t {
	case CommandRoll, CommandOpen, CommandReset,
		CommandSetNextResult, CommandSetForcedRange, CommandGetAllRooms:
		return true
	default:
		return false
	}
}
