package voxel

import (
	"testing"

	"github.com/notargets/pfire/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrid(t *testing.T, shape [3]int) (*grid.Comm, *grid.Grid) {
	comm := grid.NewComm(1)
	t.Cleanup(comm.Close)
	g, err := grid.NewGrid(comm, shape, 1)
	require.NoError(t, err)
	return comm, g
}

func TestNormalizeMakesSumEqualSize(t *testing.T) {
	comm, g := newTestGrid(t, [3]int{2, 2, 2})
	img, err := NewImage(comm, g)
	require.NoError(t, err)
	for i := 0; i < img.Size(); i++ {
		img.global.Set(i, float64(i+1))
	}
	require.NoError(t, img.Normalize())
	assert.InDelta(t, float64(img.Size()), img.Global().Sum(), 1e-9)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	comm, g := newTestGrid(t, [3]int{2, 2, 2})
	img, err := NewImage(comm, g)
	require.NoError(t, err)
	for i := 0; i < img.Size(); i++ {
		img.global.Set(i, float64(i+1))
	}
	require.NoError(t, img.Normalize())
	first := img.Global().Copy()
	require.NoError(t, img.Normalize())
	for i := 0; i < img.Size(); i++ {
		assert.InDelta(t, first.At(i), img.Global().At(i), 1e-9)
	}
}

func TestInstanceIDsAreUnique(t *testing.T) {
	comm, g := newTestGrid(t, [3]int{2, 2, 2})
	a, err := NewImage(comm, g)
	require.NoError(t, err)
	b, err := NewImage(comm, g)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPromoteShapeSetsDepthOne(t *testing.T) {
	assert.Equal(t, [3]int{32, 16, 1}, PromoteShape(32, 16))
}
