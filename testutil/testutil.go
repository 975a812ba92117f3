package testutil

import (
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/direkte/bitvector"
)

// RNG generates reproducible column data. Its methods may be called from
// several goroutines.
type RNG struct {
	mu   sync.Mutex
	seed int64
	src  *rand.PCG
	rand *rand.Rand
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	src := rand.NewPCG(uint64(seed), 0)
	return &RNG{seed: seed, src: src, rand: rand.New(src)}
}

// Reset rewinds r to the start of its sequence.
func (r *RNG) Reset() {
	r.mu.Lock()
	r.src.Seed(uint64(r.seed), 0)
	r.mu.Unlock()
}

// Seed returns the seed r was created with, for failure messages.
func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a value in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// UniformColumn returns n keys drawn uniformly from [0, card).
func (r *RNG) UniformColumn(n int, card uint32) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint32, n)
	for i := range out {
		out[i] = r.rand.Uint32N(card)
	}
	return out
}

// ZipfColumn returns n keys in [0, card) following a Zipf distribution with
// exponent s > 1, so that small keys dominate.
func (r *RNG) ZipfColumn(n int, card uint32, s float64) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	z := rand.NewZipf(r.rand, s, 1, uint64(card-1))
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(z.Uint64())
	}
	return out
}

// RunColumn returns n keys in [0, card) laid out in runs of up to maxRun
// equal values, the shape sorted or clustered columns have.
func (r *RNG) RunColumn(n int, card uint32, maxRun int) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint32, 0, n)
	for len(out) < n {
		v := r.rand.Uint32N(card)
		run := min(1+r.rand.IntN(maxRun), n-len(out))
		for range run {
			out = append(out, v)
		}
	}
	return out
}

// Mask returns a mask of n rows where each row is set with probability
// density.
func (r *RNG) Mask(n uint32, density float64) *bitvector.Bitmap {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := bitvector.New()
	for range n {
		m.AppendBit(r.rand.Float64() < density)
	}
	return m
}

// MatchingRows returns the rows set in mask whose value satisfies pred. A nil
// mask selects every row.
func MatchingRows(values []uint32, mask *bitvector.Bitmap, pred func(uint32) bool) []uint32 {
	var rows []uint32
	for i, v := range values {
		row := uint32(i)
		if mask != nil && !mask.Test(row) {
			continue
		}
		if pred(v) {
			rows = append(rows, row)
		}
	}
	return rows
}

// Counts returns the number of rows per key among the rows set in mask.
func Counts(values []uint32, mask *bitvector.Bitmap) map[uint32]uint32 {
	counts := make(map[uint32]uint32)
	for _, row := range MatchingRows(values, mask, func(uint32) bool { return true }) {
		counts[values[row]]++
	}
	return counts
}
