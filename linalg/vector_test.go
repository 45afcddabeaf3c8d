package linalg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulElemMultipliesInPlace(t *testing.T) {
	v := NewVecFromData([]float64{1, 2, 3, 4})
	x := NewVecFromData([]float64{2, 0, -1, 0.5})
	v.MulElem(x)
	assert.Equal(t, []float64{2, 0, -3, 2}, v.Data())
}

func TestMaxAbsSignedPicksLargerMagnitude(t *testing.T) {
	v := NewVecFromData([]float64{-5, 1, 3})
	assert.InDelta(t, 5.0, v.MaxAbsSigned(), 1e-9)
}
