package laplacian

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteriorNodeDiagonalEqualsNegativeNeighborCount(t *testing.T) {
	opts := Options{NodeShape: [3]int{5, 5, 1}, NDim: 2, LumWeight: 1.0}
	m, _, err := Build(opts)
	require.NoError(t, err)
	// node (2,2) in a 5x5 2D grid is interior: 4 neighbors.
	idx := 2*5 + 2
	assert.InDelta(t, -4.0, m.At(idx, idx), 1e-9)
}

func TestCornerNodeHasFewerNeighbors(t *testing.T) {
	opts := Options{NodeShape: [3]int{5, 5, 1}, NDim: 2, LumWeight: 1.0}
	m, _, err := Build(opts)
	require.NoError(t, err)
	assert.InDelta(t, -2.0, m.At(0, 0), 1e-9)
}

func TestLuminanceBlockIsIndependentlyWeighted(t *testing.T) {
	opts := Options{NodeShape: [3]int{3, 3, 1}, NDim: 2, LumWeight: 2.5}
	m, _, err := Build(opts)
	require.NoError(t, err)
	nNodes := 9
	lumOff := 2 * nNodes
	centerIdx := 1*3 + 1
	spatialDiag := m.At(centerIdx, centerIdx)
	lumDiag := m.At(lumOff+centerIdx, lumOff+centerIdx)
	assert.InDelta(t, 2.5*spatialDiag, lumDiag, 1e-9)
}

func TestBlocksAreNotCrossCoupled(t *testing.T) {
	opts := Options{NodeShape: [3]int{3, 3, 1}, NDim: 2, LumWeight: 1.0}
	m, _, err := Build(opts)
	require.NoError(t, err)
	nNodes := 9
	// any entry crossing from block 0 into block 1 must be zero.
	assert.Equal(t, 0.0, m.At(0, nNodes))
}

func TestRejectsZeroNodeShape(t *testing.T) {
	_, _, err := Build(Options{NodeShape: [3]int{0, 5, 1}, NDim: 2})
	assert.Error(t, err)
}
