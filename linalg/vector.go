// Package linalg wraps the sparse matrix/vector/KSP primitives pfire treats
// as a backend collaborator (SPEC_FULL.md 4.8), the way utils/sparse.go and
// utils/vector.go wrap james-bowman/sparse and gonum/mat for the DG solver
// in the teacher. Here the same two libraries carry a trilinear basis, a
// discrete Laplacian, and the Gauss-Newton normal matrix instead of element
// face-incidence matrices.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec is a plain (not yet partitioned) vector of coefficients or voxel
// intensities. Partition ownership lives in package grid; Vec itself is
// just storage, same division of labor as gonum's mat.VecDense versus the
// teacher's *grid.Grid ownership queries.
type Vec struct {
	raw *mat.VecDense
}

// NewVec returns a zero vector of length n.
func NewVec(n int) *Vec {
	return &Vec{raw: mat.NewVecDense(n, nil)}
}

// NewVecFromData copies data into a new vector.
func NewVecFromData(data []float64) *Vec {
	cp := make([]float64, len(data))
	copy(cp, data)
	return &Vec{raw: mat.NewVecDense(len(cp), cp)}
}

// Raw exposes the underlying gonum vector for interop with mat.Matrix
// operations (e.g. sparse matrix-vector products).
func (v *Vec) Raw() *mat.VecDense { return v.raw }

// Len returns the vector length.
func (v *Vec) Len() int { return v.raw.Len() }

// At returns element i.
func (v *Vec) At(i int) float64 { return v.raw.AtVec(i) }

// Set assigns element i.
func (v *Vec) Set(i int, val float64) { v.raw.SetVec(i, val) }

// Data returns the backing slice (no copy).
func (v *Vec) Data() []float64 { return v.raw.RawVector().Data }

// Copy returns a deep copy.
func (v *Vec) Copy() *Vec {
	return NewVecFromData(v.Data())
}

// Fill sets every element to val.
func (v *Vec) Fill(val float64) {
	d := v.Data()
	for i := range d {
		d[i] = val
	}
}

// Scale multiplies every element by s in place.
func (v *Vec) Scale(s float64) {
	v.raw.ScaleVec(s, v.raw)
}

// AddScaled computes v += s*x in place.
func (v *Vec) AddScaled(x *Vec, s float64) {
	v.raw.AddScaledVec(v.raw, s, x.raw)
}

// MulElem multiplies v by x element-wise, in place.
func (v *Vec) MulElem(x *Vec) {
	vd, xd := v.Data(), x.Data()
	for i := range vd {
		vd[i] *= xd[i]
	}
}

// Sum returns the sum of all elements.
func (v *Vec) Sum() float64 {
	var s float64
	for _, x := range v.Data() {
		s += x
	}
	return s
}

// MaxAbsSigned returns max(|max|, |min|) over the signed extremes of the
// vector, matching spec.md 4.6.2's a_max = max(|max delta a|, |min delta a|)
// convergence check.
func (v *Vec) MaxAbsSigned() (amax float64) {
	max, min := math.Inf(-1), math.Inf(1)
	for _, x := range v.Data() {
		if x > max {
			max = x
		}
		if x < min {
			min = x
		}
	}
	if math.Abs(max) > math.Abs(min) {
		return math.Abs(max)
	}
	return math.Abs(min)
}

// DuplicateInto replicates src across nStripes stripes of dst, where dst
// has length nStripes*src.Len(). This backs
// workspace.DuplicateSingleGradToStacked (SPEC_FULL.md 4.5).
func DuplicateInto(dst *Vec, src *Vec, nStripes int) {
	n := src.Len()
	sd := src.Data()
	dd := dst.Data()
	for s := 0; s < nStripes; s++ {
		copy(dd[s*n:(s+1)*n], sd)
	}
}

// ScatterInto copies each of the stripes vectors into the corresponding
// stripe of dst, where dst has length len(stripes)*stripes[0].Len(). It
// backs workspace.ScatterGradsToStacked.
func ScatterInto(dst *Vec, stripes []*Vec) {
	dd := dst.Data()
	off := 0
	for _, s := range stripes {
		copy(dd[off:off+s.Len()], s.Data())
		off += s.Len()
	}
}
