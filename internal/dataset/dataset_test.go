package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerate tests share sizes, bounds and determinism of generated keys
func TestGenerate(t *testing.T) {
	t.Run("share sizes", func(t *testing.T) {
		sizes := []int{}
		for r := 0; r < 3; r++ {
			sizes = append(sizes, len(Generate(10, 3, r, 1, 100)))
		}
		assert.Equal(t, []int{4, 3, 3}, sizes)
	})

	t.Run("keys within bounds", func(t *testing.T) {
		for _, k := range Generate(5000, 2, 1, 9, 37) {
			require.GreaterOrEqual(t, k, int64(0))
			require.Less(t, k, int64(37))
		}
	})

	t.Run("deterministic per seed and rank", func(t *testing.T) {
		assert.Equal(t, Generate(100, 4, 2, 5, 0), Generate(100, 4, 2, 5, 0))
		assert.NotEqual(t, Generate(100, 4, 2, 5, 0), Generate(100, 4, 3, 5, 0))
		assert.NotEqual(t, Generate(100, 4, 2, 5, 0), Generate(100, 4, 2, 6, 0))
	})

	t.Run("default bound", func(t *testing.T) {
		for _, k := range Generate(1000, 1, 0, 1, 0) {
			require.Less(t, k, int64(DefaultMaxKey))
		}
	})
}

// TestScatter tests splitting a global array into rank shares
func TestScatter(t *testing.T) {
	keys := []int64{15, 3, 9, 1, 11, 4, 8, 2, 14, 6}
	parts := Scatter(keys, 3)

	require.Len(t, parts, 3)
	assert.Equal(t, []int64{15, 3, 9, 1}, parts[0])
	assert.Equal(t, []int64{11, 4, 8}, parts[1])
	assert.Equal(t, []int64{2, 14, 6}, parts[2])

	parts[0][0] = -1
	assert.Equal(t, int64(15), keys[0], "shares must not alias the input")
}

// TestChecksum tests count and sum of a key set
func TestChecksum(t *testing.T) {
	n, sum := Checksum([]int64{1, -2, 10})
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(9), sum)

	n, sum = Checksum(nil)
	assert.Zero(t, n)
	assert.Zero(t, sum)
}
