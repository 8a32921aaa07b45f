// Package scramble reconstructs page images whose grid tiles were shuffled by a
// seeded permutation. The generator, the shuffle and the tile partition must
// stay bit-compatible with the service that scrambles the pages.
package scramble

import "math"

const mulberryIncrement = 0x6D2B79F5

// Mulberry32 is a 32-bit generator with a single word of state. All arithmetic
// wraps at 32 bits.
type Mulberry32 struct {
	state uint32
}

func NewMulberry32(seed int32) *Mulberry32 {
	return &Mulberry32{state: uint32(seed)}
}

func (m *Mulberry32) Next() uint32 {
	m.state += mulberryIncrement
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// NewSeededGenerator returns the generator as a closure.
func NewSeededGenerator(seed int32) func() uint32 {
	rng := NewMulberry32(seed)
	return rng.Next
}

const twoTo32 = 4294967296.0

// ToInt32 coerces a number to a signed 32-bit seed the way JavaScript's ToInt32
// does: truncate toward zero, wrap modulo 2^32. The second result is false for
// NaN and infinities.
func ToInt32(f float64) (int32, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	m := math.Mod(math.Trunc(f), twoTo32)
	if m < 0 {
		m += twoTo32
	}
	return int32(uint32(m)), true
}
