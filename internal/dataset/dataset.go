// Package dataset produces the initial per-rank key shares of a sort run:
// seeded random generation for benchmarks, and scattering of an existing
// global array.
package dataset

import (
	"math/rand/v2"

	"golang.org/x/exp/slices"

	"github.com/dreamware/samplesort/internal/samplesort"
)

// DefaultMaxKey bounds generated keys to [0, DefaultMaxKey).
const DefaultMaxKey = 1_000_000

// rankSeedStride separates the random streams of neighbouring ranks.
const rankSeedStride = 100

// Generate returns rank's share of n random keys spread over p ranks, with
// keys uniform in [0, maxKey). The same (seed, rank) always yields the same
// keys, so every rank can generate its own share without a scatter.
func Generate(n, p, rank int, seed, maxKey int64) []int64 {
	if maxKey <= 0 {
		maxKey = DefaultMaxKey
	}
	s := uint64(seed + int64(rank)*rankSeedStride)
	rng := rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))

	keys := make([]int64, samplesort.ShareSize(n, p, rank))
	for i := range keys {
		keys[i] = rng.Int64N(maxKey)
	}
	return keys
}

// Scatter splits keys into p consecutive shares sized by samplesort.ShareSize.
// Each share is an independent copy.
func Scatter(keys []int64, p int) [][]int64 {
	parts := make([][]int64, p)
	off := 0
	for r := range parts {
		n := samplesort.ShareSize(len(keys), p, r)
		parts[r] = slices.Clone(keys[off : off+n])
		off += n
	}
	return parts
}

// Checksum returns the key count and wrapping sum of keys. Two key
// multisets that differ in a single key never share a checksum.
func Checksum(keys []int64) (count int, sum int64) {
	for _, k := range keys {
		sum += k
	}
	return len(keys), sum
}
