package dice

import (
	"math/rand"
	"sync"
	"time"

	"dicebowl/pkg/types"
)

// Triple is an ordered set of three die faces. Position is significant:
// slots 0/1/2 map to fixed visual positions on the plate.
type Triple [3]int

// DefaultTriple is the value every room shows before its first roll.
func DefaultTriple() Triple {
	return Triple{1, 1, 1}
}

// Sum returns the face total, in [3,18] for any valid triple.
func (t Triple) Sum() int {
	return t[0] + t[1] + t[2]
}

// Valid reports whether every face is in [1,6].
func (t Triple) Valid() bool {
	for _, v := range t {
		if !types.IsValidFace(v) {
			return false
		}
	}
	return true
}

// Slice returns the triple as a plain slice for wire payloads.
func (t Triple) Slice() []int {
	return []int{t[0], t[1], t[2]}
}

// FromSlice converts a validated wire payload into a Triple. The caller is
// expected to have run types.ValidateTriple first.
func FromSlice(values []int) Triple {
	var t Triple
	copy(t[:], values)
	return t
}

// Roller draws uniform die faces. Safe for concurrent use; rooms rolling in
// parallel share a single roller.
type Roller struct {
	mu     sync.Mutex
	random *rand.Rand
}

// Config for the roller.
type Config struct {
	// Optional seed for deterministic tests. Zero means seed from the clock.
	Seed int64
}

// New creates a roller.
func New(cfg *Config) *Roller {
	var seed int64
	if cfg != nil && cfg.Seed != 0 {
		seed = cfg.Seed
	} else {
		seed = time.Now().UnixNano()
	}
	return &Roller{random: rand.New(rand.NewSource(seed))}
}

// Face draws one uniform die face in [1,6].
func (r *Roller) Face() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.random.Intn(types.MaxFace) + 1
}

// Triple draws three independent uniform faces.
func (r *Roller) Triple() Triple {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Triple{
		r.random.Intn(types.MaxFace) + 1,
		r.random.Intn(types.MaxFace) + 1,
		r.random.Intn(types.MaxFace) + 1,
	}
}
