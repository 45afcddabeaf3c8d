package regmap

import (
	"testing"

	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/linalg"
	"github.com/notargets/pfire/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMapCoefficientVectorLengthMatchesBlocks(t *testing.T) {
	m, err := New([3]int{16, 16, 1}, [3]int{4, 4, 1}, 2, 1.0)
	require.NoError(t, err)
	assert.Equal(t, (m.Ndim()+1)*m.Size(), m.Coefficients().Len())
}

func TestUpdateRejectsMismatchedLength(t *testing.T) {
	m, err := New([3]int{16, 16, 1}, [3]int{4, 4, 1}, 2, 1.0)
	require.NoError(t, err)
	ok := m.Coefficients().Copy()
	require.NoError(t, m.Update(ok))

	short := linalg.NewVec(2)
	assert.Error(t, m.Update(short))
}

func TestWarpOfZeroMapIsIdentity(t *testing.T) {
	comm := grid.NewComm(1)
	defer comm.Close()
	g, err := grid.NewGrid(comm, [3]int{8, 8, 1}, 1)
	require.NoError(t, err)
	img, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	for i := 0; i < img.Size(); i++ {
		img.Global().Set(i, float64(i))
	}

	m, err := New([3]int{8, 8, 1}, [3]int{4, 4, 1}, 2, 1.0)
	require.NoError(t, err)

	out, err := m.Warp(img)
	require.NoError(t, err)
	for i := 0; i < img.Size(); i++ {
		assert.InDelta(t, img.Global().At(i), out.Global().At(i), 1e-9)
	}
}

func TestInterpolateProducesFinerNodeGrid(t *testing.T) {
	m, err := New([3]int{32, 32, 1}, [3]int{8, 8, 1}, 2, 1.0)
	require.NoError(t, err)
	next, err := m.Interpolate([3]int{4, 4, 1})
	require.NoError(t, err)
	assert.Greater(t, next.Size(), m.Size())
}
