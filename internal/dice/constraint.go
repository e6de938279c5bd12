package dice

import (
	"dicebowl/pkg/types"
)

// ConstraintKind discriminates the outcome constraint variants.
type ConstraintKind int

const (
	// KindNone means the next roll is fully random.
	KindNone ConstraintKind = iota
	// KindExact means the next roll reproduces a fixed triple verbatim.
	KindExact
	// KindRange means the next roll's sum must land in an inclusive range.
	KindRange
)

// Constraint is a pending instruction for how the next roll is chosen.
// The zero value is the unconstrained variant.
type Constraint struct {
	kind  ConstraintKind
	exact Triple
	min   int
	max   int
}

// None returns the unconstrained variant.
func None() Constraint {
	return Constraint{}
}

// Exact returns a constraint forcing the next roll to t.
func Exact(t Triple) Constraint {
	return Constraint{kind: KindExact, exact: t}
}

// Range returns a constraint forcing the next roll's sum into [min,max].
func Range(min, max int) Constraint {
	return Constraint{kind: KindRange, min: min, max: max}
}

// Kind returns the variant tag.
func (c Constraint) Kind() ConstraintKind {
	return c.kind
}

// IsNone reports whether the constraint leaves the roll fully random.
func (c Constraint) IsNone() bool {
	return c.kind == KindNone
}

// Resolve produces a concrete triple consistent with the constraint.
//
// For a range constraint, three faces are drawn and the first die alone is
// adjusted by the signed difference needed to bring the sum into range,
// clamped to [1,6]. This is a deliberate best-effort, single-die correction:
// when clamping leaves the sum outside the range (for example a draw 16
// above the max with die 1 already at 1) the result is accepted as-is, with
// no retries. The preview shown to admins and the eventual roll resolve the
// same range independently and may differ.
func (r *Roller) Resolve(c Constraint) Triple {
	switch c.kind {
	case KindExact:
		return c.exact
	case KindRange:
		t := r.Triple()
		sum := t.Sum()
		switch {
		case sum < c.min:
			t[0] = clampFace(t[0] + (c.min - sum))
		case sum > c.max:
			t[0] = clampFace(t[0] - (sum - c.max))
		}
		return t
	default:
		return r.Triple()
	}
}

func clampFace(v int) int {
	if v < types.MinFace {
		return types.MinFace
	}
	if v > types.MaxFace {
		return types.MaxFace
	}
	return v
}
