// Injectable random sources for the stochastic generators
// PCG is the default; ChaCha8 and MRG32k3a streams are portable alternates
package model

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/iti/rngstream"
)

// DefaultSeed seeds every stochastic generator whose configuration leaves the seed unset.
const DefaultSeed uint64 = 42

// SourceFunc creates the random source a generator samples from.
type SourceFunc func(seed uint64) rand.Source

// PCGSource is the default SourceFunc.
func PCGSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, 0) //nolint:gosec // reproducible traces need a deterministic generator
}

// ChaCha8Source derives a ChaCha8 key from the seed.
func ChaCha8Source(seed uint64) rand.Source {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	return rand.NewChaCha8(key)
}

// MRG32k3a component moduli.
const (
	mrgM1 = 4294967087
	mrgM2 = 4294944443
)

// StreamSource seeds an MRG32k3a stream from the seed. Each of the six state
// components is drawn from a PCG keyed on the seed and kept inside [1, m).
func StreamSource(seed uint64) rand.Source {
	mix := rand.New(rand.NewPCG(seed, mrgM1)) //nolint:gosec // deterministic state derivation
	state := make([]uint64, 6)
	for i := range state {
		m := uint64(mrgM1)
		if i >= 3 {
			m = mrgM2
		}
		state[i] = 1 + mix.Uint64N(m-1)
	}

	stream := new(rngstream.RngStream)
	stream.SetSeed(state)
	return &streamSource{stream: stream}
}

type streamSource struct {
	stream *rngstream.RngStream
}

// Uint64 joins two 32-bit draws.
func (s *streamSource) Uint64() uint64 {
	hi := uint64(s.stream.RandU01() * (1 << 32))
	lo := uint64(s.stream.RandU01() * (1 << 32))
	return hi<<32 | lo
}

func newSource(fn SourceFunc, seed *uint64) rand.Source {
	if fn == nil {
		fn = PCGSource
	}
	return fn(valueOr(seed, DefaultSeed))
}
