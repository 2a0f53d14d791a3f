package engine

import (
	"fmt"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// golden64 is the 64-bit golden ratio increment used by SplitMix64.
const golden64 = 0x9e3779b97f4a7c15

// Stream is a cursor into one keyed, synchronized pseudo-random sequence.
//
// The value at position n is splitmix64(seed + n*golden64), where seed is
// derived from the session seed and the key. A stream therefore has no hidden
// state beyond its position: two peers at the same position produce the same
// next value, whatever happened to other keys in between.
type Stream struct {
	key  string
	seed uint64
	pos  int64 // Number of units consumed so far
}

// newStream derives the stream for key from the session seed.
func newStream(sessionSeed int64, key string) (*Stream, error) {
	seed, err := ir.StreamSeed(sessionSeed, key)
	if err != nil {
		return nil, fmt.Errorf("derive stream %q: %w", key, err)
	}
	return &Stream{key: key, seed: seed}, nil
}

// Key returns the call-site key identifying the stream.
func (s *Stream) Key() string {
	return s.key
}

// Pos returns the number of units consumed so far.
func (s *Stream) Pos() int64 {
	return s.pos
}

// next consumes exactly one unit and returns it.
func (s *Stream) next() uint64 {
	s.pos++
	return streamValue(s.seed, s.pos)
}

func streamValue(seed uint64, pos int64) uint64 {
	return splitmix64(seed + uint64(pos)*golden64)
}

func splitmix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// unitFloat maps 64 random bits onto [0, 1) using the top 53 bits.
func unitFloat(u uint64) float64 {
	return float64(u>>11) * (1.0 / (1 << 53))
}
