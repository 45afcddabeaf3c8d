// Package workspace implements the per-generation scratch of spec.md 4.5
// (C5): stacked-gradient scatters, the T-matrix storage, and the delta-a
// and rhs vectors, all reallocated whenever the map's node grid changes.
package workspace

import (
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/fd"
	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/linalg"
	"github.com/notargets/pfire/regmap"
)

// Workspace holds the scratch state of one generation (one fixed node
// spacing). Scratch allocations are exclusively owned by it, per spec.md
// 5's shared-resource rule, and reallocation only happens between
// generations via Reallocate.
type Workspace struct {
	Grid *grid.Grid
	NDim int

	// Stacked is the length D*image_size stacked temporary spec.md 4.5
	// scatter/duplicate both fill.
	Stacked *linalg.Vec

	// Locals holds one ghosted local temporary per rank, spec.md 4.5's
	// local ghosted temporary generalized from rank 0 alone to every rank
	// so ScatterGradsToStacked covers the whole grid; refilled (not
	// reallocated) on every calculate_tmat call via Grid.GlobalToLocal.
	Locals []*grid.GhostVec

	// T mirrors B's sparsity pattern (same shape); allocated fresh each
	// innerstep by calculate_tmat, freed (set nil) at the end of the step
	// per spec.md 4.6.3 step 6's "free T (memory-sensitive)".
	T *linalg.Mat

	// DeltaA and Rhs are sized like the map's packed coefficient vector a.
	DeltaA *linalg.Vec
	Rhs    *linalg.Vec
}

// New allocates a workspace for g with map's current size, per spec.md
// 4.5's reallocate_ephemeral_workspace plus the gradient-stacking scratch
// spec.md's Workspace attributes list alongside it.
func New(g *grid.Grid, ndim int, m *regmap.Map) *Workspace {
	ws := &Workspace{Grid: g, NDim: ndim}
	ws.Reallocate(g, m)
	return ws
}

// Reallocate resizes every scratch allocation to match g and m's current
// size, spec.md 4.5's reallocate_ephemeral_workspace generalized to cover
// the gradient-stacking scratch too since both change together on a
// generation boundary.
func (ws *Workspace) Reallocate(g *grid.Grid, m *regmap.Map) {
	ws.Grid = g
	ws.Stacked = linalg.NewVec(ws.NDim * g.Size())
	ws.Locals = make([]*grid.GhostVec, g.Comm.NumRanks)
	for r := range ws.Locals {
		ws.Locals[r] = g.NewLocalVec(r)
	}
	ws.T = nil
	aLen := (m.Ndim() + 1) * m.Size()
	ws.DeltaA = linalg.NewVec(aLen)
	ws.Rhs = linalg.NewVec(aLen)
}

// gradScatter is one of the rank*D begin/end scatter pairs spec.md 4.5's
// scatter_grads_to_stacked names: it computes one rank's contribution to one
// dimension's gradient of field (C1) and is the unit of work a Begin/End
// pair wraps.
type gradScatter struct {
	rank   int
	dim    int
	local  *grid.GhostVec
	result *linalg.Vec
	err    error
}

// ScatterGradsToStacked computes g_0..g_{D-1} = grad(field) over the whole
// grid and scatters them into the D stripes of Stacked. field is ghosted and
// differenced independently on every rank's owned slab -- fd.Gradient writes
// only the voxels rank owns, leaving the rest of its returned vector zero --
// and the per-rank partial results are summed to cover the full domain,
// since every rank's nonzero span is disjoint. The per-rank ghost refill
// itself goes through grid.Scatter's BeginGlobalToLocal/End pair -- every
// rank's Begin is issued before any rank's End is awaited -- and the rank*D
// gradient computations that follow repeat the same begin-all-then-end-all
// discipline, generalized from one rank's slab to every rank's, per spec.md
// 5's begin/end overlap rule.
func (ws *Workspace) ScatterGradsToStacked(field *linalg.Vec) error {
	numRanks := ws.Grid.Comm.NumRanks
	begins := make([]*grid.Scatter, numRanks)
	for r := 0; r < numRanks; r++ {
		begins[r] = ws.Grid.BeginGlobalToLocal(r, field, ws.Locals[r])
	}
	scatters := make([]*gradScatter, 0, numRanks*ws.NDim)
	for r := 0; r < numRanks; r++ {
		if err := begins[r].End(); err != nil {
			return err
		}
		local := ws.Locals[r]
		for d := 0; d < ws.NDim; d++ {
			scatters = append(scatters, &gradScatter{rank: r, dim: d, local: local})
		}
	}

	done := make(chan *gradScatter, len(scatters))
	for _, s := range scatters {
		go func(s *gradScatter) {
			s.result, s.err = fd.Gradient(ws.Grid, s.rank, s.local, s.dim)
			done <- s
		}(s)
	}

	grads := make([]*linalg.Vec, ws.NDim)
	for i := 0; i < ws.NDim; i++ {
		grads[i] = ws.Grid.NewGlobalVec()
	}
	for i := 0; i < len(scatters); i++ {
		s := <-done
		if s.err != nil {
			return s.err
		}
		grads[s.dim].AddScaled(s.result, 1)
	}
	linalg.ScatterInto(ws.Stacked, grads)
	return nil
}

// DuplicateSingleGradToStacked replicates field into every one of the D
// stripes of Stacked, per spec.md 4.5's duplicate_single_grad_to_stacked
// (used to build the replicated residual [F-M', ..., F-M']).
func (ws *Workspace) DuplicateSingleGradToStacked(field *linalg.Vec) error {
	if field.Len()*ws.NDim != ws.Stacked.Len() {
		return errs.Wrapf(errs.ErrShapeMismatch, "workspace: field length %d does not tile stacked length %d over %d stripes", field.Len(), ws.Stacked.Len(), ws.NDim)
	}
	linalg.DuplicateInto(ws.Stacked, field, ws.NDim)
	return nil
}
