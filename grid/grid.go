package grid

import (
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/linalg"
)

// Grid partitions a [3]int shape into one z-slab per rank and exposes the
// ghosted local / unpartitioned global vector pair spec.md's Image and Map
// types are built on. The fast axes (x, y) are never split -- each rank
// holds the full x-y extent of its z-slab -- so only z carries inter-rank
// ghost exchange; x and y boundaries always use the mirror policy spec.md
// 4.1 assumes at the true image boundary.
type Grid struct {
	Comm      *Comm
	Shape     [3]int // [nx, ny, nz], global
	Ghost     int
	partition *PartitionMap
}

// NewGrid partitions shape across comm.NumRanks ranks along z, with ghost
// layers of width ghost on every axis.
func NewGrid(comm *Comm, shape [3]int, ghost int) (*Grid, error) {
	if shape[0] <= 0 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, errs.Wrapf(errs.ErrInvalidArgument, "grid: non-positive shape %v", shape)
	}
	if shape[2] < comm.NumRanks {
		return nil, errs.Wrapf(errs.ErrInvalidArgument, "grid: z-extent %d smaller than rank count %d", shape[2], comm.NumRanks)
	}
	return &Grid{
		Comm:      comm,
		Shape:     shape,
		Ghost:     ghost,
		partition: NewPartitionMap(comm.NumRanks, shape[2]),
	}, nil
}

// Size returns the total voxel/node count of the grid.
func (g *Grid) Size() int { return g.Shape[0] * g.Shape[1] * g.Shape[2] }

// LocalZRange returns the [begin, end) z-slab owned by rank.
func (g *Grid) LocalZRange(rank int) (int, int) { return g.partition.Range(rank) }

// LocalShape returns the local (non-ghosted) shape owned by rank.
func (g *Grid) LocalShape(rank int) [3]int {
	b, e := g.LocalZRange(rank)
	return [3]int{g.Shape[0], g.Shape[1], e - b}
}

// Owns reports whether global flat index idx's z-plane belongs to rank.
func (g *Grid) Owns(rank, idx int) bool {
	_, _, k := g.Unflatten(idx)
	return g.partition.Owns(rank, k)
}

// Flatten returns the row-major flat index of (i, j, k) in the global grid
// (x fastest, z slowest).
func (g *Grid) Flatten(i, j, k int) int {
	return (k*g.Shape[1]+j)*g.Shape[0] + i
}

// Unflatten inverts Flatten.
func (g *Grid) Unflatten(idx int) (i, j, k int) {
	nx, ny := g.Shape[0], g.Shape[1]
	i = idx % nx
	rest := idx / nx
	j = rest % ny
	k = rest / ny
	return
}

// NewGlobalVec allocates a full-size (unpartitioned) global vector.
func (g *Grid) NewGlobalVec() *linalg.Vec { return linalg.NewVec(g.Size()) }

// GhostVec is a local array with a ghost layer of width Ghost on every
// axis, the local half of spec.md 4.1's "local ghosted vector compatible
// with the grid".
type GhostVec struct {
	Shape [3]int // local, non-ghosted shape
	Ghost int
	data  []float64
}

func (g *Grid) ghostedShape(rank int) [3]int {
	ls := g.LocalShape(rank)
	gh := g.Ghost
	return [3]int{ls[0] + 2*gh, ls[1] + 2*gh, ls[2] + 2*gh}
}

// NewLocalVec allocates a ghosted local vector sized for rank's slab.
func (g *Grid) NewLocalVec(rank int) *GhostVec {
	gs := g.ghostedShape(rank)
	return &GhostVec{
		Shape: g.LocalShape(rank),
		Ghost: g.Ghost,
		data:  make([]float64, gs[0]*gs[1]*gs[2]),
	}
}

func (lv *GhostVec) ghostedDims() (nx, ny, nz int) {
	return lv.Shape[0] + 2*lv.Ghost, lv.Shape[1] + 2*lv.Ghost, lv.Shape[2] + 2*lv.Ghost
}

// At returns the value at local (non-ghosted) coordinate (i, j, k), where i
// in [-ghost, shape+ghost), etc.
func (lv *GhostVec) At(i, j, k int) float64 {
	nx, ny, _ := lv.ghostedDims()
	gi, gj, gk := i+lv.Ghost, j+lv.Ghost, k+lv.Ghost
	return lv.data[(gk*ny+gj)*nx+gi]
}

// Set assigns the value at local (non-ghosted) coordinate (i, j, k).
func (lv *GhostVec) Set(i, j, k int, val float64) {
	nx, ny, _ := lv.ghostedDims()
	gi, gj, gk := i+lv.Ghost, j+lv.Ghost, k+lv.Ghost
	lv.data[(gk*ny+gj)*nx+gi] = val
}

// Matches reports whether lv's non-ghosted shape matches shape, the check
// spec.md 4.1 requires fd.Gradient to perform before touching the grid.
func (lv *GhostVec) Matches(shape [3]int) bool {
	return lv.Shape == shape
}

// GlobalToLocal synchronizes g's owned slab from global into l's interior,
// then fills l's ghost layers: x/y ghosts always mirror the nearest
// interior plane (true image boundary, spec.md 4.1's "ghosted-mirror
// policy"); z ghosts mirror at the true domain edge and exchange with the
// neighbor rank's slab at an interior partition seam. This is the
// begin/end-free half of the sync -- GlobalToLocal is itself invoked from
// inside a Scatter so the begin/end discipline lives in one place
// (BeginGlobalToLocal/End in grid/scatter.go), matching spec.md 5's rule that Scatter begin is
// non-blocking and its end is the only synchronization point.
func (g *Grid) GlobalToLocal(rank int, global *linalg.Vec, local *GhostVec) error {
	ls := g.LocalShape(rank)
	if !local.Matches(ls) {
		return errs.Wrapf(errs.ErrInvalidArgument, "grid: local vector shape %v does not match grid-owned shape %v", local.Shape, ls)
	}
	zBegin, _ := g.LocalZRange(rank)
	for k := 0; k < ls[2]; k++ {
		for j := 0; j < ls[1]; j++ {
			for i := 0; i < ls[0]; i++ {
				local.Set(i, j, k, global.At(g.Flatten(i, j, zBegin+k)))
			}
		}
	}
	g.fillXYMirror(local)
	g.fillZGhost(rank, global, local)
	return nil
}

func (g *Grid) fillXYMirror(local *GhostVec) {
	nx, ny, nz := local.Shape[0], local.Shape[1], local.Shape[2]
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			local.Set(-1, j, k, local.At(0, j, k))
			local.Set(nx, j, k, local.At(nx-1, j, k))
		}
		for i := -1; i <= nx; i++ {
			local.Set(i, -1, k, local.At(i, 0, k))
			local.Set(i, ny, k, local.At(i, ny-1, k))
		}
	}
}

func (g *Grid) fillZGhost(rank int, global *linalg.Vec, local *GhostVec) {
	ls := local.Shape
	zBegin, zEnd := g.LocalZRange(rank)
	// Lower ghost plane (k = -1).
	if zBegin == 0 {
		for j := -1; j <= ls[1]; j++ {
			for i := -1; i <= ls[0]; i++ {
				local.Set(i, j, -1, local.At(i, j, 0))
			}
		}
	} else {
		for j := 0; j < ls[1]; j++ {
			for i := 0; i < ls[0]; i++ {
				local.Set(i, j, -1, global.At(g.Flatten(i, j, zBegin-1)))
			}
		}
	}
	// Upper ghost plane (k = ls[2]).
	if zEnd == g.Shape[2] {
		for j := -1; j <= ls[1]; j++ {
			for i := -1; i <= ls[0]; i++ {
				local.Set(i, j, ls[2], local.At(i, j, ls[2]-1))
			}
		}
	} else {
		for j := 0; j < ls[1]; j++ {
			for i := 0; i < ls[0]; i++ {
				local.Set(i, j, ls[2], global.At(g.Flatten(i, j, zEnd)))
			}
		}
	}
}

// LocalToGlobal writes l's interior (non-ghost) values back into g's
// owned slab of global.
func (g *Grid) LocalToGlobal(rank int, local *GhostVec, global *linalg.Vec) error {
	ls := g.LocalShape(rank)
	if !local.Matches(ls) {
		return errs.Wrapf(errs.ErrInvalidArgument, "grid: local vector shape %v does not match grid-owned shape %v", local.Shape, ls)
	}
	zBegin, _ := g.LocalZRange(rank)
	for k := 0; k < ls[2]; k++ {
		for j := 0; j < ls[1]; j++ {
			for i := 0; i < ls[0]; i++ {
				global.Set(g.Flatten(i, j, zBegin+k), local.At(i, j, k))
			}
		}
	}
	return nil
}
