// Package laplacian implements the block-diagonal discrete Laplacian
// regularizer of spec.md 4.3 (C3): a 5- or 7-point stencil over the map's
// node grid, replicated identically across each spatial coefficient block
// and, with an independently weighted copy, across the luminance block.
package laplacian

import (
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/linalg"
)

// Options configures Laplacian construction.
type Options struct {
	NodeShape [3]int
	NDim      int // D: 2 or 3

	// LumWeight scales the luminance block's copy of the stencil relative
	// to the spatial blocks. spec.md's Open Question on this left the
	// Laplacian weighting for the luminance block unspecified beyond "same
	// weight as spatial blocks"; this repository resolves it by exposing
	// an independent scalar knob defaulting to 1.0, which reproduces that
	// original behavior when left untouched.
	LumWeight float64
}

// Build constructs L of shape (D+1)*|N| x (D+1)*|N|: D+1 independent copies
// of the same discrete Laplacian stencil over the node grid, one per
// spatial dimension plus one for luminance. A node at a true grid boundary
// has fewer neighbors; per spec.md 4.3's Dirichlet-zero ghost policy, the
// missing neighbor's contribution to the diagonal is simply omitted rather
// than mirrored, so boundary nodes have a smaller (less negative-definite)
// diagonal than interior nodes.
func Build(opts Options) (*linalg.Mat, []linalg.Entry, error) {
	if opts.NDim != 2 && opts.NDim != 3 {
		return nil, nil, errs.Wrapf(errs.ErrInvalidArgument, "laplacian: ndim must be 2 or 3, got %d", opts.NDim)
	}
	for d := 0; d < opts.NDim; d++ {
		if opts.NodeShape[d] <= 0 {
			return nil, nil, errs.Wrapf(errs.ErrInvalidArgument, "laplacian: node shape[%d] must be positive", d)
		}
	}
	lumWeight := opts.LumWeight
	if lumWeight == 0 {
		lumWeight = 1.0
	}

	nNodes := opts.NodeShape[0] * opts.NodeShape[1] * opts.NodeShape[2]
	nBlocks := opts.NDim + 1
	entries := make([]linalg.Entry, 0, nBlocks*nNodes*(2*opts.NDim+1))

	stencil := buildStencilEntries(opts.NodeShape, opts.NDim)

	for block := 0; block < nBlocks; block++ {
		weight := 1.0
		if block == opts.NDim {
			weight = lumWeight
		}
		off := block * nNodes
		for _, e := range stencil {
			entries = append(entries, linalg.Entry{Row: off + e.Row, Col: off + e.Col, Val: weight * e.Val})
		}
	}

	n := nBlocks * nNodes
	return linalg.NewMatFromEntries(n, n, entries), entries, nil
}

// buildStencilEntries constructs one block's worth of the discrete
// Laplacian: diagonal = -(number of present neighbors), off-diagonal = 1
// for each axis-aligned neighbor inside the grid.
func buildStencilEntries(shape [3]int, ndim int) []linalg.Entry {
	nNodes := shape[0] * shape[1] * shape[2]
	entries := make([]linalg.Entry, 0, nNodes*(2*ndim+1))
	for idx := 0; idx < nNodes; idx++ {
		node := unflatten(idx, shape)
		var neighbors int
		for d := 0; d < ndim; d++ {
			for _, sign := range [2]int{-1, 1} {
				nb := node
				nb[d] += sign
				if nb[d] < 0 || nb[d] >= shape[d] {
					continue
				}
				neighbors++
				entries = append(entries, linalg.Entry{Row: idx, Col: flatten(nb, shape), Val: 1})
			}
		}
		entries = append(entries, linalg.Entry{Row: idx, Col: idx, Val: -float64(neighbors)})
	}
	return entries
}

func unflatten(idx int, shape [3]int) [3]int {
	i := idx % shape[0]
	rest := idx / shape[0]
	j := rest % shape[1]
	k := rest / shape[1]
	return [3]int{i, j, k}
}

func flatten(node [3]int, shape [3]int) int {
	return (node[2]*shape[1]+node[1])*shape[0] + node[0]
}
