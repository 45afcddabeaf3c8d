// Package fd implements the finite-difference gradient of spec.md 4.1 (C1):
// central difference with step 1 voxel, reading a ghosted local vector and
// producing a global vector on the same grid.
package fd

import (
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/linalg"
)

// Gradient computes g[i,j,k] = 0.5*(u[i+e_d] - u[i-e_d]) along dimension
// dim (0=x, 1=y, 2=z) over local's interior, using local's ghost layer for
// the neighbor samples, and returns the result as a global vector on rank's
// owned slab of g. Boundary behavior is whatever ghost policy local was
// filled with (grid.GlobalToLocal's mirror-at-the-true-boundary policy).
func Gradient(g *grid.Grid, rank int, local *grid.GhostVec, dim int) (*linalg.Vec, error) {
	ls := g.LocalShape(rank)
	if !local.Matches(ls) {
		return nil, errs.Wrapf(errs.ErrInvalidArgument, "fd: local vector shape %v does not match grid-owned shape %v", local.Shape, ls)
	}
	if dim < 0 || dim > 2 {
		return nil, errs.Wrapf(errs.ErrInvalidArgument, "fd: dimension %d out of range [0,2]", dim)
	}

	out := g.NewGlobalVec()
	zBegin, _ := g.LocalZRange(rank)
	var e [3]int
	e[dim] = 1

	for k := 0; k < ls[2]; k++ {
		for j := 0; j < ls[1]; j++ {
			for i := 0; i < ls[0]; i++ {
				plus := local.At(i+e[0], j+e[1], k+e[2])
				minus := local.At(i-e[0], j-e[1], k-e[2])
				val := 0.5 * (plus - minus)
				out.Set(g.Flatten(i, j, zBegin+k), val)
			}
		}
	}
	return out, nil
}
