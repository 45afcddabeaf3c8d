// Package basis implements the trilinear basis builder of spec.md 4.2
// (C2): the sparse interpolation matrix B mapping the map's node grid to
// the image grid, augmented with a nearest-node luminance column block.
package basis

import (
	"math"

	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/linalg"
)

// Options configures basis construction.
type Options struct {
	ImageShape [3]int
	NodeShape  [3]int
	Spacing    [3]int     // sigma_d
	Origin     [3]float64 // o_d, coarse-grid origin in image coordinates
	NDim       int        // D: 2 or 3
	Tile       int        // row-batch size bounding temporary memory; <=0 means "whole image at once"
}

// Build constructs B of shape image_size x (D+1)*|N| per spec.md 4.2: for
// every image voxel, 2^D trilinear weights land in each of the D spatial
// column blocks (same weights, same node columns, different block offset),
// plus one weight-1 entry in the luminance block at the nearest node.
// Edge policy is clamp: a node outside [0, N) is pulled to the nearest
// valid node rather than dropped.
func Build(opts Options) (*linalg.Mat, error) {
	if opts.NDim != 2 && opts.NDim != 3 {
		return nil, errs.Wrapf(errs.ErrInvalidArgument, "basis: ndim must be 2 or 3, got %d", opts.NDim)
	}
	for d := 0; d < opts.NDim; d++ {
		if opts.Spacing[d] <= 0 {
			return nil, errs.Wrapf(errs.ErrInvalidArgument, "basis: spacing[%d] must be positive, got %d", d, opts.Spacing[d])
		}
		if opts.NodeShape[d] <= 0 {
			return nil, errs.Wrapf(errs.ErrInvalidArgument, "basis: node shape[%d] must be positive", d)
		}
	}

	nNodes := opts.NodeShape[0] * opts.NodeShape[1] * opts.NodeShape[2]
	nImage := opts.ImageShape[0] * opts.ImageShape[1] * opts.ImageShape[2]
	tile := opts.Tile
	if tile <= 0 {
		tile = nImage
	}

	entries := make([]linalg.Entry, 0, nImage*(opts.NDim*(1<<opts.NDim)+1))
	nCombos := 1 << opts.NDim

	for rowStart := 0; rowStart < nImage; rowStart += tile {
		rowEnd := rowStart + tile
		if rowEnd > nImage {
			rowEnd = nImage
		}
		for row := rowStart; row < rowEnd; row++ {
			x := unflattenImage(row, opts.ImageShape)

			var n [3]int
			var f [3]float64
			for d := 0; d < opts.NDim; d++ {
				p := (float64(x[d]) - opts.Origin[d]) / float64(opts.Spacing[d])
				nd := int(math.Floor(p))
				n[d] = nd
				f[d] = p - float64(nd)
			}

			for combo := 0; combo < nCombos; combo++ {
				var weight = 1.0
				var node [3]int
				for d := 0; d < opts.NDim; d++ {
					delta := (combo >> d) & 1
					node[d] = clamp(n[d]+delta, opts.NodeShape[d])
					if delta == 1 {
						weight *= 1 - math.Abs(f[d]-1)
					} else {
						weight *= 1 - math.Abs(f[d])
					}
				}
				nodeFlat := flattenNode(node, opts.NodeShape)
				for d := 0; d < opts.NDim; d++ {
					col := d*nNodes + nodeFlat
					entries = append(entries, linalg.Entry{Row: row, Col: col, Val: weight})
				}
			}

			var nearest [3]int
			for d := 0; d < opts.NDim; d++ {
				nd := n[d]
				if f[d] >= 0.5 {
					nd++
				}
				nearest[d] = clamp(nd, opts.NodeShape[d])
			}
			lumCol := opts.NDim*nNodes + flattenNode(nearest, opts.NodeShape)
			entries = append(entries, linalg.Entry{Row: row, Col: lumCol, Val: 1})
		}
	}

	nCols := (opts.NDim + 1) * nNodes
	return linalg.NewMatFromEntries(nImage, nCols, entries), nil
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func unflattenImage(idx int, shape [3]int) [3]int {
	i := idx % shape[0]
	rest := idx / shape[0]
	j := rest % shape[1]
	k := rest / shape[1]
	return [3]int{i, j, k}
}

func flattenNode(node [3]int, shape [3]int) int {
	return (node[2]*shape[1]+node[1])*shape[0] + node[0]
}
