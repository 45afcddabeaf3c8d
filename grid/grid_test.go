package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionMapCoversRange(t *testing.T) {
	pm := NewPartitionMap(3, 10)
	seen := make([]bool, 10)
	for r := 0; r < 3; r++ {
		b, e := pm.Range(r)
		for i := b; i < e; i++ {
			assert.False(t, seen[i], "index %d double-covered", i)
			seen[i] = true
			assert.Equal(t, r, pm.RankOf(i))
		}
	}
	for i, s := range seen {
		assert.True(t, s, "index %d uncovered", i)
	}
}

func TestGlobalToLocalRoundTripsInterior(t *testing.T) {
	comm := NewComm(2)
	defer comm.Close()
	g, err := NewGrid(comm, [3]int{4, 4, 6}, 1)
	require.NoError(t, err)

	global := g.NewGlobalVec()
	for i := 0; i < global.Len(); i++ {
		global.Set(i, float64(i))
	}

	for rank := 0; rank < comm.NumRanks; rank++ {
		local := g.NewLocalVec(rank)
		require.NoError(t, g.GlobalToLocal(rank, global, local))

		roundTrip := g.NewGlobalVec()
		for i := range roundTrip.Data() {
			roundTrip.Set(i, -1)
		}
		require.NoError(t, g.LocalToGlobal(rank, local, roundTrip))

		zBegin, zEnd := g.LocalZRange(rank)
		for k := zBegin; k < zEnd; k++ {
			for j := 0; j < g.Shape[1]; j++ {
				for i := 0; i < g.Shape[0]; i++ {
					idx := g.Flatten(i, j, k)
					assert.Equal(t, global.At(idx), roundTrip.At(idx))
				}
			}
		}
	}
}

func TestAllReduceSum(t *testing.T) {
	comm := NewComm(4)
	defer comm.Close()
	total, err := comm.AllReduceSum([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 10.0, total)
}

func TestAbortMarksCommAndPreservesErrorChain(t *testing.T) {
	comm := NewComm(2)
	defer comm.Close()
	assert.False(t, comm.Aborted())

	sentinel := errors.New("backend error")
	err := comm.Abort(sentinel)
	assert.True(t, comm.Aborted())
	assert.True(t, errors.Is(err, sentinel))
}

func TestScatterBeginEnd(t *testing.T) {
	comm := NewComm(1)
	defer comm.Close()
	g, err := NewGrid(comm, [3]int{3, 3, 3}, 1)
	require.NoError(t, err)
	global := g.NewGlobalVec()
	global.Fill(7)
	local := g.NewLocalVec(0)

	s := g.BeginGlobalToLocal(0, global, local)
	require.NoError(t, s.End())
	assert.Equal(t, 7.0, local.At(0, 0, 0))
}
