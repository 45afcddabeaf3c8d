package basis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowSumsOverEachSpatialBlockAreOne(t *testing.T) {
	opts := Options{
		ImageShape: [3]int{8, 8, 1},
		NodeShape:  [3]int{3, 3, 1},
		Spacing:    [3]int{4, 4, 1},
		Origin:     [3]float64{0, 0, 0},
		NDim:       2,
	}
	m, err := Build(opts)
	require.NoError(t, err)

	nNodes := 3 * 3 * 1
	nr, _ := m.Dims()
	for row := 0; row < nr; row++ {
		for d := 0; d < opts.NDim; d++ {
			var sum float64
			for col := d * nNodes; col < (d+1)*nNodes; col++ {
				sum += m.At(row, col)
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "row %d block %d", row, d)
		}
	}
}

func TestLuminanceBlockHasExactlyOneEntryPerRow(t *testing.T) {
	opts := Options{
		ImageShape: [3]int{6, 6, 6},
		NodeShape:  [3]int{3, 3, 3},
		Spacing:    [3]int{3, 3, 3},
		Origin:     [3]float64{0, 0, 0},
		NDim:       3,
	}
	m, err := Build(opts)
	require.NoError(t, err)
	nNodes := 3 * 3 * 3
	nr, nc := m.Dims()
	lumStart := opts.NDim * nNodes
	assert.Equal(t, (opts.NDim+1)*nNodes, nc)
	for row := 0; row < nr; row++ {
		var count int
		var sum float64
		for col := lumStart; col < nc; col++ {
			v := m.At(row, col)
			if v != 0 {
				count++
				sum += v
			}
		}
		assert.Equal(t, 1, count, "row %d", row)
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", row)
	}
}

func TestRejectsNonPositiveSpacing(t *testing.T) {
	opts := Options{
		ImageShape: [3]int{4, 4, 1},
		NodeShape:  [3]int{2, 2, 1},
		Spacing:    [3]int{0, 4, 1},
		NDim:       2,
	}
	_, err := Build(opts)
	assert.Error(t, err)
}

func TestClampsNodesAtImageEdges(t *testing.T) {
	opts := Options{
		ImageShape: [3]int{10, 10, 1},
		NodeShape:  [3]int{2, 2, 1},
		Spacing:    [3]int{8, 8, 1},
		Origin:     [3]float64{0, 0, 0},
		NDim:       2,
	}
	m, err := Build(opts)
	require.NoError(t, err)
	nr, _ := m.Dims()
	assert.Equal(t, 100, nr)
	nNodes := 2 * 2
	for row := 0; row < nr; row++ {
		for d := 0; d < opts.NDim; d++ {
			var sum float64
			for col := d * nNodes; col < (d+1)*nNodes; col++ {
				sum += m.At(row, col)
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}
