// Package voxel implements the Image data model of spec.md section 3: a
// voxel field on a 2D-or-3D grid, with a global distributed vector, a
// ghosted local vector kept in sync only on demand, and a process-wide
// monotonic instance id, the same role utils-level "id" bookkeeping plays
// for mesh/element identity in the teacher.
package voxel

import (
	"sync/atomic"

	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/linalg"
)

var idCounter uint64

func nextID() uint64 { return atomic.AddUint64(&idCounter, 1) }

// Image is a voxel field on the grid owned by comm/shape, per spec.md
// section 3. A 2D image is promoted to 3D with depth 1 by its loader
// before NewImage is ever called.
type Image struct {
	Shape [3]int
	Grid  *grid.Grid
	Comm  *grid.Comm
	ID    uint64

	global *linalg.Vec
	local  *grid.GhostVec // nil until SyncLocal is called

	// Mask is the automatic-mask hook spec.md's Non-goals stub out: nil
	// unless a loader populates it (none in this repository do), in which
	// case Normalize sums only the voxels where it is nonzero and the
	// driver's residual computation multiplies by it row-wise.
	Mask *linalg.Vec
}

// NewImage allocates a zero-valued image on the given grid.
func NewImage(comm *grid.Comm, g *grid.Grid) (*Image, error) {
	if g.Shape[0] <= 0 {
		return nil, errs.Wrap(errs.ErrInvalidArgument, "voxel: grid has no shape")
	}
	return &Image{
		Shape:  g.Shape,
		Grid:   g,
		Comm:   comm,
		ID:     nextID(),
		global: g.NewGlobalVec(),
	}, nil
}

// NewImageFromData allocates an image on g and copies data (row-major,
// x-fastest) into its global vector.
func NewImageFromData(comm *grid.Comm, g *grid.Grid, data []float64) (*Image, error) {
	img, err := NewImage(comm, g)
	if err != nil {
		return nil, err
	}
	if len(data) != g.Size() {
		return nil, errs.Wrapf(errs.ErrShapeMismatch, "voxel: data length %d does not match grid size %d", len(data), g.Size())
	}
	copy(img.global.Data(), data)
	return img, nil
}

// Size returns the voxel count.
func (img *Image) Size() int { return img.Grid.Size() }

// Global returns the distributed global vector.
func (img *Image) Global() *linalg.Vec { return img.global }

// SyncLocal performs the explicit global-to-local sync spec.md section 3
// requires before any rank reads ghosted neighbor values (e.g. before a
// gradient). rank identifies which rank's slab to materialize.
func (img *Image) SyncLocal(rank int) (*grid.GhostVec, error) {
	local := img.Grid.NewLocalVec(rank)
	if err := img.Grid.GlobalToLocal(rank, img.global, local); err != nil {
		return nil, err
	}
	img.local = local
	return local, nil
}

// SyncGlobal writes rank's local ghosted interior back into the global
// vector.
func (img *Image) SyncGlobal(rank int, local *grid.GhostVec) error {
	return img.Grid.LocalToGlobal(rank, local, img.global)
}

// Normalize scales Global so its elements sum to Size(), per spec.md
// section 3's Image invariant. When Mask is set, only masked (nonzero
// mask weight) voxels enter the sum and the count, so the masked voxels
// sum to their count; the resulting scale is applied to every voxel -- the
// hook spec.md's Open Questions ask for without this repository shipping
// a loader that ever sets Mask.
func (img *Image) Normalize() error {
	data := img.global.Data()
	var sum, count float64
	if img.Mask != nil {
		md := img.Mask.Data()
		for i, v := range data {
			if md[i] != 0 {
				sum += v
				count++
			}
		}
	} else {
		sum = img.global.Sum()
		count = float64(len(data))
	}
	if sum == 0 {
		return errs.Wrap(errs.ErrInvalidArgument, "voxel: cannot normalize an image whose sum is zero")
	}
	scale := count / sum
	img.global.Scale(scale)
	return nil
}

// Duplicate returns a new image with the same shape and grid, with Global
// copied from img.
func (img *Image) Duplicate() *Image {
	dup := &Image{
		Shape:  img.Shape,
		Grid:   img.Grid,
		Comm:   img.Comm,
		ID:     nextID(),
		global: img.global.Copy(),
		Mask:   img.Mask,
	}
	return dup
}

// PromoteShape lifts a 2D (width, height) shape into a depth-1 3D
// [width, height, 1] shape,
// per spec.md section 1's "2D is promoted to 3D with depth=1".
func PromoteShape(width, height int) [3]int {
	return [3]int{width, height, 1}
}
