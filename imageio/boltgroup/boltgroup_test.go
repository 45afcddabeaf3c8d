package boltgroup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadGroupRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pfiredb")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	data := make([]float64, 3*ChunkSize+7)
	for i := range data {
		data[i] = float64(i) * 0.5
	}
	meta := Meta{Shape: [3]int{1, 1, len(data)}}
	require.NoError(t, WriteGroup(db, "registered", meta, data))

	gotMeta, gotData, err := ReadGroup(db, "registered")
	require.NoError(t, err)
	assert.Equal(t, meta.Shape, gotMeta.Shape)
	require.Len(t, gotData, len(data))
	for i := range data {
		assert.Equal(t, data[i], gotData[i])
	}
}

func TestReadGroupMissingReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pfiredb")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	_, _, err = ReadGroup(db, "nope")
	assert.Error(t, err)
}

func TestMapGroupCarriesSpacing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pfiredb")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	meta := Meta{NDim: 2, Spacing: [3]int{4, 4, 1}}
	data := []float64{1, 2, 3, 4}
	require.NoError(t, WriteGroup(db, "map", meta, data))
	gotMeta, gotData, err := ReadGroup(db, "map")
	require.NoError(t, err)
	assert.Equal(t, meta.Spacing, gotMeta.Spacing)
	assert.Equal(t, meta.NDim, gotMeta.NDim)
	assert.Equal(t, data, gotData)
}
