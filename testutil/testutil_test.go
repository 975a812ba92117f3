package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/direkte/bitvector"
)

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)
	first := rng.UniformColumn(16, 100)
	rng.Reset()
	assert.Equal(t, first, rng.UniformColumn(16, 100))
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestColumns(t *testing.T) {
	rng := NewRNG(4711)

	for name, col := range map[string][]uint32{
		"uniform": rng.UniformColumn(1000, 16),
		"zipf":    rng.ZipfColumn(1000, 16, 1.5),
		"runs":    rng.RunColumn(1000, 16, 50),
	} {
		t.Run(name, func(t *testing.T) {
			require.Len(t, col, 1000)
			for _, v := range col {
				assert.Less(t, v, uint32(16))
			}
		})
	}
}

func TestZipfColumn_Skew(t *testing.T) {
	rng := NewRNG(1)
	counts := Counts(rng.ZipfColumn(10000, 32, 2), nil)
	assert.Greater(t, counts[0], counts[31])
}

func TestMask(t *testing.T) {
	rng := NewRNG(1)
	m := rng.Mask(1000, 0.5)
	assert.Equal(t, uint32(1000), m.Size())
	assert.Greater(t, m.Count(), uint32(350))
	assert.Less(t, m.Count(), uint32(650))

	assert.Zero(t, rng.Mask(100, 0).Count())
	assert.Equal(t, uint32(100), rng.Mask(100, 1).Count())
}

func TestMatchingRows(t *testing.T) {
	values := []uint32{0, 1, 2, 1, 0, 2}
	mask, err := bitvector.Parse("111011")
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2, 5}, MatchingRows(values, mask, func(v uint32) bool { return v >= 1 }))
	assert.Equal(t, []uint32{1, 2, 3, 5}, MatchingRows(values, nil, func(v uint32) bool { return v >= 1 }))
	assert.Equal(t, map[uint32]uint32{0: 2, 1: 1, 2: 2}, Counts(values, mask))
}
