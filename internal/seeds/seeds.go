package seeds

import (
	"math/big"
	"math/rand"
	"time"
)

// Bound is the exclusive upper limit of every drawn seed: 2 << 64, i.e. 2^65.
// Existing result trees were produced with this bound, so it is kept as is.
var Bound = new(big.Int).Lsh(big.NewInt(2), 64)

// Stream is a reproducible sequence of run seeds derived from one base seed.
// It is not safe for concurrent use.
type Stream struct {
	base  int64
	rng   *rand.Rand
	drawn int
}

// NewStream returns a stream seeded from base.
func NewStream(base int64) *Stream {
	return &Stream{
		base: base,
		rng:  rand.New(rand.NewSource(base)),
	}
}

// DefaultBase returns the current wall clock in nanoseconds.
func DefaultBase() int64 {
	return time.Now().UnixNano()
}

// Base returns the seed the stream was created from.
func (s *Stream) Base() int64 {
	return s.base
}

// Drawn reports how many seeds have been taken from the stream.
func (s *Stream) Drawn() int {
	return s.drawn
}

// Next draws the next seed, uniform in [0, Bound).
func (s *Stream) Next() *big.Int {
	s.drawn++
	return new(big.Int).Rand(s.rng, Bound)
}

// Discard draws and drops n seeds, keeping later draws aligned with their runs.
func (s *Stream) Discard(n int) {
	for i := 0; i < n; i++ {
		s.Next()
	}
}
