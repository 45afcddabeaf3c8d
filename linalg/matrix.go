package linalg

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Entry is a coordinate-list nonzero, used by the basis and Laplacian
// builders to hand their sparsity pattern to code that later needs to
// combine matrices built with unrelated patterns (spec.md 4.6.3 step 4's
// "different nonzero pattern" regularization add), the same role
// utils.DOK.IndexedAssign's Index list plays in the teacher for one-shot
// assembly.
type Entry struct {
	Row, Col int
	Val      float64
}

// Mat wraps a james-bowman/sparse CSR matrix the way utils.CSR wraps it in
// the teacher, generalized from element face-incidence matrices to the
// basis, Laplacian, T, and normal matrices of the registration solver.
type Mat struct {
	nr, nc int
	csr    *sparse.CSR
}

// NewMatFromEntries builds a matrix from a coordinate list, accumulating
// duplicate (row, col) pairs additively -- the same DOK-then-freeze
// construction utils/sparse.go uses (sparse.NewDOK, Set, ToCSR).
func NewMatFromEntries(nr, nc int, entries []Entry) *Mat {
	dok := sparse.NewDOK(nr, nc)
	for _, e := range entries {
		dok.Set(e.Row, e.Col, dok.At(e.Row, e.Col)+e.Val)
	}
	return &Mat{nr: nr, nc: nc, csr: dok.ToCSR()}
}

// Dims returns (rows, cols).
func (m *Mat) Dims() (int, int) { return m.nr, m.nc }

// At returns entry (i, j), zero if absent.
func (m *Mat) At(i, j int) float64 { return m.csr.At(i, j) }

// Raw exposes the underlying sparse.CSR for direct library interop.
func (m *Mat) Raw() *sparse.CSR { return m.csr }

// MulVec computes m*x.
func (m *Mat) MulVec(x *Vec) *Vec {
	y := mat.NewVecDense(m.nr, nil)
	y.MulVec(m.csr, x.raw)
	return &Vec{raw: y}
}

// MulVecTranspose computes m^T*x.
func (m *Mat) MulVecTranspose(x *Vec) *Vec {
	y := mat.NewVecDense(m.nc, nil)
	y.MulVec(m.csr.T(), x.raw)
	return &Vec{raw: y}
}

// GramMatrix computes m^T*m as a sparse matrix -- the Gauss-Newton normal
// matrix of spec.md 4.6.3 step 2 -- using the exact sparse-times-sparse
// idiom the teacher uses to build face adjacency in DG1D/startup.go:
// SpFToF.Mul(SpFToV, SpFToV.T()).
func (m *Mat) GramMatrix() *Mat {
	nmat := sparse.NewCSR(m.nc, m.nc, nil, nil, nil)
	nmat.Mul(m.csr.T(), m.csr)
	return &Mat{nr: m.nc, nc: m.nc, csr: nmat}
}

// Diag returns the main diagonal.
func (m *Mat) Diag() []float64 {
	n := m.nr
	if m.nc < n {
		n = m.nc
	}
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = m.csr.At(i, i)
	}
	return d
}

// AddScaledEntries adds scale*entries[k].Val into m at each entry's
// coordinate, in place, regardless of whether m already has a nonzero
// there -- this is exactly the "different nonzero pattern" regularizer add
// spec.md 4.6.3 step 4 calls for (Nmat += lambda*L), expressed against L's
// own retained coordinate list rather than by walking Nmat's internal
// storage.
func (m *Mat) AddScaledEntries(entries []Entry, scale float64) {
	for _, e := range entries {
		m.csr.Set(e.Row, e.Col, m.csr.At(e.Row, e.Col)+scale*e.Val)
	}
}

// rawCSR exposes the row-pointer/column-index/value arrays backing the CSR
// storage, matching the one confirmed raw-array access in the teacher
// (utils/sparse.go: m.M.RawMatrix().Data) generalized to the full CSR
// triple for in-place, pattern-preserving row/column scaling.
type rawCSR struct {
	Indptr []int
	Ind    []int
	Data   []float64
}

func (m *Mat) raw() rawCSR {
	r := m.csr.RawMatrix()
	return rawCSR{Indptr: r.Indptr, Ind: r.Ind, Data: r.Data}
}

// ScaleRowsLeft scales every nonzero in row i by p[i], in place -- the
// left-diagonal scaling spec.md 4.6.3 step 3 (block preconditioning) and
// step 3's final "Nmat <- diag(P)*Nmat" both need.
func (m *Mat) ScaleRowsLeft(p []float64) {
	r := m.raw()
	for i := 0; i < m.nr; i++ {
		for k := r.Indptr[i]; k < r.Indptr[i+1]; k++ {
			r.Data[k] *= p[i]
		}
	}
}

// ScaleByColumnBlock scales every nonzero at (row, col) by
// scale(row, col/blockWidth), in place. This implements the T-matrix
// construction of spec.md 4.6.3 step 1g, where a basis row's entries are
// scaled differently depending on which of the D+1 coefficient blocks
// (spatial dimension d, or luminance) the column falls in.
func (m *Mat) ScaleByColumnBlock(blockWidth int, scale func(row, block int) float64) {
	r := m.raw()
	for i := 0; i < m.nr; i++ {
		for k := r.Indptr[i]; k < r.Indptr[i+1]; k++ {
			block := r.Ind[k] / blockWidth
			r.Data[k] *= scale(i, block)
		}
	}
}

// CopyShape returns a matrix with the same dimensions and sparsity pattern
// but independent storage, for the "copy of B" step in T-matrix
// construction (spec.md 4.6.3 step 1f).
func (m *Mat) CopyShape() *Mat {
	r := m.raw()
	nnz := len(r.Data)
	rowPtr := make([]int, len(r.Indptr))
	copy(rowPtr, r.Indptr)
	colIdx := make([]int, nnz)
	copy(colIdx, r.Ind)
	data := make([]float64, nnz)
	copy(data, r.Data)
	return &Mat{nr: m.nr, nc: m.nc, csr: sparse.NewCSR(m.nr, m.nc, rowPtr, colIdx, data)}
}
