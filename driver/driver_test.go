package driver

import (
	"testing"

	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/linalg"
	"github.com/notargets/pfire/regmap"
	"github.com/notargets/pfire/voxel"
	"github.com/notargets/pfire/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityImages(t *testing.T, shape [3]int) (*grid.Comm, *grid.Grid, *voxel.Image, *voxel.Image) {
	comm := grid.NewComm(1)
	t.Cleanup(comm.Close)
	g, err := grid.NewGrid(comm, shape, 1)
	require.NoError(t, err)

	f, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	m, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	for i := 0; i < f.Size(); i++ {
		v := float64(i%7 + 1)
		f.Global().Set(i, v)
		m.Global().Set(i, v)
	}
	require.NoError(t, f.Normalize())
	require.NoError(t, m.Normalize())
	return comm, g, f, m
}

func TestAutoregisterIdentityStaysConverged(t *testing.T) {
	comm, g, f, m := newIdentityImages(t, [3]int{8, 8, 1})
	opts := DefaultOptions(2, [3]int{4, 4, 1})
	drv := New(comm, g, opts)

	result, err := drv.Autoregister(f, m)
	require.NoError(t, err)
	require.NotEmpty(t, result.Generations)
	last := result.Generations[len(result.Generations)-1]
	assert.True(t, last.Converged)
}

func TestAutoregisterRejectsShapeMismatch(t *testing.T) {
	comm := grid.NewComm(1)
	defer comm.Close()
	g, err := grid.NewGrid(comm, [3]int{8, 8, 1}, 1)
	require.NoError(t, err)
	f, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	for i := 0; i < f.Size(); i++ {
		f.Global().Set(i, float64(i+1))
	}
	require.NoError(t, f.Normalize())

	g2, err := grid.NewGrid(comm, [3]int{4, 4, 1}, 1)
	require.NoError(t, err)
	m, err := voxel.NewImage(comm, g2)
	require.NoError(t, err)
	for i := 0; i < m.Size(); i++ {
		m.Global().Set(i, float64(i+1))
	}
	require.NoError(t, m.Normalize())

	opts := DefaultOptions(2, [3]int{2, 2, 1})
	drv := New(comm, g, opts)
	_, err = drv.Autoregister(f, m)
	assert.Error(t, err)
}

func TestInnerstepZeroMaskLeavesMapUnchanged(t *testing.T) {
	comm, g, f, m := newIdentityImages(t, [3]int{8, 8, 1})
	f.Mask = linalg.NewVec(f.Size())

	opts := DefaultOptions(2, [3]int{4, 4, 1})
	drv := New(comm, g, opts)

	schedule, err := BuildSchedule(f.Shape, opts.NDim, opts.TargetSpacing)
	require.NoError(t, err)
	curMap, err := regmap.New(f.Shape, schedule[0], opts.NDim, opts.LumWeight)
	require.NoError(t, err)
	ws := workspace.New(g, opts.NDim, curMap)

	mprime, err := curMap.Warp(m)
	require.NoError(t, err)
	require.NoError(t, mprime.Normalize())

	before := curMap.Coefficients().Copy()
	amax, kspConverged, err := drv.innerstep(f, m, mprime, curMap, ws)
	require.NoError(t, err)
	assert.True(t, kspConverged)
	assert.Equal(t, 0.0, amax)
	assert.Equal(t, before.Data(), curMap.Coefficients().Data())
}

func TestInnerloopReportsKSPNonConvergence(t *testing.T) {
	comm := grid.NewComm(1)
	t.Cleanup(comm.Close)
	g, err := grid.NewGrid(comm, [3]int{8, 8, 1}, 1)
	require.NoError(t, err)
	f, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	m, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	for i := 0; i < f.Size(); i++ {
		f.Global().Set(i, float64(i%7+1))
		m.Global().Set(i, float64((i+3)%5+1))
	}
	require.NoError(t, f.Normalize())
	require.NoError(t, m.Normalize())

	opts := DefaultOptions(2, [3]int{4, 4, 1})
	opts.KSP.MaxIter = 1
	opts.KSP.Tolerance = 1e-15
	drv := New(comm, g, opts)

	schedule, err := BuildSchedule(f.Shape, opts.NDim, opts.TargetSpacing)
	require.NoError(t, err)
	curMap, err := regmap.New(f.Shape, schedule[0], opts.NDim, opts.LumWeight)
	require.NoError(t, err)
	ws := workspace.New(g, opts.NDim, curMap)

	mprime, err := curMap.Warp(m)
	require.NoError(t, err)
	require.NoError(t, mprime.Normalize())

	gr, err := drv.innerloop(f, m, mprime, curMap, ws, 0)
	require.NoError(t, err)
	assert.True(t, gr.KSPNonConverged)
}

// TestInnerstepRecoversRightwardTranslation exercises the translation
// scenario of spec.md 8: M is F's content shifted +shift voxels along x
// (M(i,j) = F(i-shift,j), edge-clamped), so Warp's resample(M, x+d(x)) only
// reproduces F when d's x-component comes out close to +shift. A sign error
// in calculateTMat's spatial gradient flips this to -shift and every inner
// step walks further from F instead of toward it.
func TestInnerstepRecoversRightwardTranslation(t *testing.T) {
	comm := grid.NewComm(1)
	t.Cleanup(comm.Close)
	shape := [3]int{16, 16, 1}
	g, err := grid.NewGrid(comm, shape, 1)
	require.NoError(t, err)

	f, err := voxel.NewImage(comm, g)
	require.NoError(t, err)
	m, err := voxel.NewImage(comm, g)
	require.NoError(t, err)

	const shift = 2
	for j := 0; j < shape[1]; j++ {
		for i := 0; i < shape[0]; i++ {
			row := g.Flatten(i, j, 0)
			f.Global().Set(row, float64(i+1))
			mi := i - shift
			if mi < 0 {
				mi = 0
			}
			m.Global().Set(row, float64(mi+1))
		}
	}
	require.NoError(t, f.Normalize())
	require.NoError(t, m.Normalize())

	opts := DefaultOptions(2, [3]int{4, 4, 1})
	drv := New(comm, g, opts)

	schedule, err := BuildSchedule(f.Shape, opts.NDim, opts.TargetSpacing)
	require.NoError(t, err)
	curMap, err := regmap.New(f.Shape, schedule[0], opts.NDim, opts.LumWeight)
	require.NoError(t, err)
	ws := workspace.New(g, opts.NDim, curMap)

	mprime, err := curMap.Warp(m)
	require.NoError(t, err)
	require.NoError(t, mprime.Normalize())

	residualBefore := f.Global().Copy()
	residualBefore.AddScaled(mprime.Global(), -1)

	_, _, err = drv.innerstep(f, m, mprime, curMap, ws)
	require.NoError(t, err)

	n := curMap.Size()
	dxBlock := curMap.Coefficients().Data()[0:n]
	var sum float64
	for _, v := range dxBlock {
		sum += v
	}
	assert.Greater(t, sum, 0.0, "x-displacement should move toward +shift, recovering M's rightward content shift")

	residualAfter := f.Global().Copy()
	residualAfter.AddScaled(mprime.Global(), -1)
	assert.Less(t, sumSquares(residualAfter.Data()), sumSquares(residualBefore.Data()), "one inner step should reduce the residual, not grow it")
}

func sumSquares(data []float64) float64 {
	var s float64
	for _, v := range data {
		s += v * v
	}
	return s
}

func TestScheduleLengthMatchesGenerationCount(t *testing.T) {
	comm, g, f, m := newIdentityImages(t, [3]int{16, 16, 1})
	opts := DefaultOptions(2, [3]int{4, 4, 1})
	opts.MaxInnerIter = 2
	drv := New(comm, g, opts)
	result, err := drv.Autoregister(f, m)
	require.NoError(t, err)
	schedule, err := BuildSchedule([3]int{16, 16, 1}, 2, [3]int{4, 4, 1})
	require.NoError(t, err)
	assert.Len(t, result.Generations, len(schedule))
}
