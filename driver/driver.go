package driver

import (
	"fmt"

	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/linalg"
	"github.com/notargets/pfire/regmap"
	"github.com/notargets/pfire/voxel"
	"github.com/notargets/pfire/workspace"
)

// Options configures a Driver, covering every knob spec.md 4.6 and 6 name.
type Options struct {
	NDim           int
	TargetSpacing  [3]int
	LumWeight      float64
	InitialLambda  float64
	MaxInnerIter   int
	ConvThreshold  float64
	KSP            linalg.KSPOptions
	// DebugFrames, when non-nil, is invoked after every (outer, inner)
	// pair per spec.md 4.6.4, with no semantics beyond naming and
	// invocation timing -- an external collaborator call.
	DebugFrames func(outer, inner int, mprime *voxel.Image) error
}

// DefaultOptions returns the baseline configuration named throughout
// spec.md 4.6: lambda = 20.0, max 50 inner iterations, convergence
// threshold 0.1.
func DefaultOptions(ndim int, targetSpacing [3]int) Options {
	return Options{
		NDim:          ndim,
		TargetSpacing: targetSpacing,
		LumWeight:     1.0,
		InitialLambda: 20.0,
		MaxInnerIter:  50,
		ConvThreshold: 0.1,
		KSP:           linalg.DefaultKSPOptions(),
	}
}

// GenerationResult reports what happened during one generation's inner
// loop, for callers that want per-generation diagnostics (e.g. the
// non-convergence reporting end-to-end scenario).
type GenerationResult struct {
	Spacing    [3]int
	Iterations int
	Converged  bool
	AMax       float64
	// KSPNonConverged records whether any inner iteration's Krylov solve
	// failed to reach KSPOptions.Tolerance within KSPOptions.MaxIter.
	// spec.md 7 treats this as reported-but-not-fatal: the driver keeps
	// the best available delta and continues, but the caller should know.
	KSPNonConverged bool
}

// Result is autoregister's return value: the final warped image, the
// finest-level map, and per-generation diagnostics.
type Result struct {
	Mprime      *voxel.Image
	Map         *regmap.Map
	Generations []GenerationResult
}

// Driver owns the registration run's mutable state -- iteration counter,
// generation, lambda, current M', current map -- per spec.md 4.6's State
// list. The driver is the sole writer of Map.Update, per spec.md 5's
// shared-resource rule.
type Driver struct {
	Comm *grid.Comm
	Grid *grid.Grid
	Opts Options

	Lambda     float64
	Generation int
	Iteration  int
}

// New constructs a driver bound to g's grid/comm and the given options.
func New(comm *grid.Comm, g *grid.Grid, opts Options) *Driver {
	return &Driver{Comm: comm, Grid: g, Opts: opts, Lambda: opts.InitialLambda}
}

// Autoregister runs the full coarse-to-fine outer loop of spec.md 4.6.1
// against fixed image F and moved image M.
func (d *Driver) Autoregister(f, m *voxel.Image) (*Result, error) {
	if f.Shape != m.Shape {
		return nil, errs.Wrapf(errs.ErrShapeMismatch, "driver: fixed shape %v does not match moved shape %v", f.Shape, m.Shape)
	}
	schedule, err := BuildSchedule(f.Shape, d.Opts.NDim, d.Opts.TargetSpacing)
	if err != nil {
		return nil, err
	}

	currentMap, err := regmap.New(f.Shape, schedule[0], d.Opts.NDim, d.Opts.LumWeight)
	if err != nil {
		return nil, err
	}
	ws := workspace.New(d.Grid, d.Opts.NDim, currentMap)

	mprime, err := currentMap.Warp(m)
	if err != nil {
		return nil, err
	}
	if err := mprime.Normalize(); err != nil {
		return nil, err
	}

	result := &Result{Map: currentMap}

	for gi, spacing := range schedule {
		d.Generation = gi
		if gi > 0 {
			currentMap, err = currentMap.Interpolate(spacing)
			if err != nil {
				return nil, err
			}
			ws.Reallocate(d.Grid, currentMap)
			mprime, err = currentMap.Warp(m)
			if err != nil {
				return nil, err
			}
			if err := mprime.Normalize(); err != nil {
				return nil, err
			}
		}

		genResult, err := d.innerloop(f, m, mprime, currentMap, ws, gi)
		if err != nil {
			return nil, err
		}
		result.Generations = append(result.Generations, genResult)
		result.Map = currentMap
		result.Mprime = mprime
	}

	return result, nil
}

// innerloop runs innerstep up to MaxInnerIter times at a fixed spacing,
// per spec.md 4.6.2, breaking the generation early once a_max falls below
// the convergence threshold.
func (d *Driver) innerloop(f, m *voxel.Image, mprime *voxel.Image, curMap *regmap.Map, ws *workspace.Workspace, outerGen int) (GenerationResult, error) {
	gr := GenerationResult{Spacing: curMap.Spacing}
	for it := 0; it < d.Opts.MaxInnerIter; it++ {
		d.Iteration = it
		amax, kspConverged, err := d.innerstep(f, m, mprime, curMap, ws)
		if err != nil {
			return gr, err
		}
		gr.Iterations = it + 1
		gr.AMax = amax
		if !kspConverged {
			gr.KSPNonConverged = true
		}

		if d.Opts.DebugFrames != nil {
			if err := d.Opts.DebugFrames(outerGen, it, mprime); err != nil {
				return gr, err
			}
		}

		if amax < d.Opts.ConvThreshold {
			gr.Converged = true
			return gr, nil
		}
	}
	return gr, nil
}

// innerstep performs one Gauss-Newton-like iteration, per spec.md 4.6.3,
// and returns a_max = max(|max delta a|, |min delta a|) for the caller's
// convergence check, plus whether the inner Krylov solve itself converged.
// mprime is warped and normalized in place (its underlying *voxel.Image
// identity is replaced via the pointer it points to, since Warp always
// allocates a fresh image).
func (d *Driver) innerstep(f, m, mprime *voxel.Image, curMap *regmap.Map, ws *workspace.Workspace) (float64, bool, error) {
	t, err := d.calculateTMat(f, mprime, curMap, ws)
	if err != nil {
		return 0, false, err
	}
	ws.T = t

	nmat := t.GramMatrix()

	if err := d.blockPrecondition(nmat, curMap); err != nil {
		return 0, false, err
	}

	_, lapEntries := curMap.Laplacian()
	nmat.AddScaledEntries(lapEntries, d.Lambda)

	// rhs = T^T * (F - M'). spec.md 4.6.3 step 5 describes replicating the
	// residual across the workspace's D-wide stacked temporary via
	// duplicate_single_grad_to_stacked before the multiply, reusing the
	// same scratch scatter_grads_to_stacked fills; since T has image_size
	// rows (not D*image_size -- spec.md's own stated T shape) and every
	// replicated stripe holds the identical value, that replication is a
	// no-op here: T^T applied once to the unreplicated residual is the
	// same computation with the redundant stripes elided.
	residual := f.Global().Copy()
	residual.AddScaled(mprime.Global(), -1)
	if f.Mask != nil {
		residual.MulElem(f.Mask)
	}
	rhs := t.MulVecTranspose(residual)
	ws.Rhs = rhs

	ws.T = nil // free T, spec.md 4.6.3 step 6

	delta, info, err := linalg.KSPSolve(nmat, rhs, ws.DeltaA, d.Opts.KSP)
	if err != nil {
		backendErr := errs.Wrap(errs.ErrBackend, fmt.Sprintf("driver: %v", err))
		return 0, false, d.Comm.Abort(backendErr)
	}
	// spec.md section 7: NonConverged is reported, not fatal; the driver
	// proceeds with the best available delta and lets the caller (innerloop,
	// then GenerationResult.KSPNonConverged) report it.
	ws.DeltaA = delta

	if err := curMap.Update(delta); err != nil {
		return 0, info.Converged, err
	}
	warped, err := curMap.Warp(m)
	if err != nil {
		return 0, info.Converged, err
	}
	if err := warped.Normalize(); err != nil {
		return 0, info.Converged, err
	}
	*mprime = *warped

	return delta.MaxAbsSigned(), info.Converged, nil
}

// calculateTMat implements spec.md 4.6.3 step 1. The gradient feeding the
// spatial blocks of T is taken from 0.5*(F+M') - 1 (step (a)/(c)); the sign
// flip to 1 - 0.5*(F+M') in step (d) is applied only to the scalar value
// used for the luminance-block scale, never to the gradient source -- the
// two differ by a sign, and differentiating the flipped field would negate
// every spatial column of T (so Tᵀ(F-M') and the recovered displacement
// delta come out with the opposite sign). Its gradient over the whole grid
// populates the stacked temporary via the workspace's begin-all then
// end-all scatter (every rank's slab, not just rank 0's), and T is a copy
// of B whose entries are scaled per column block: spatial blocks by the
// gradient component, the luminance block by the flipped field value
// itself (the coupling spec.md step 1g alludes to but does not spell out
// in index terms).
func (d *Driver) calculateTMat(f, mprime *voxel.Image, curMap *regmap.Map, ws *workspace.Workspace) (*linalg.Mat, error) {
	n := f.Size()
	gradSource := linalg.NewVec(n)
	lumField := linalg.NewVec(n)
	fd, md := f.Global().Data(), mprime.Global().Data()
	gs, lf := gradSource.Data(), lumField.Data()
	for i := 0; i < n; i++ {
		gs[i] = 0.5*(fd[i]+md[i]) - 1
		lf[i] = -gs[i]
	}

	if err := ws.ScatterGradsToStacked(gradSource); err != nil {
		return nil, err
	}

	t := curMap.Basis().CopyShape()
	nNodes := curMap.Size()
	ndim := curMap.Ndim()
	stacked := ws.Stacked
	t.ScaleByColumnBlock(nNodes, func(row, block int) float64 {
		if block < ndim {
			return stacked.At(block*n + row)
		}
		return lumField.At(row)
	})

	return t, nil
}

// blockPrecondition implements spec.md 4.6.3 step 3: rebalance the
// luminance block's diagonal average to match the spatial block's, using
// a node-index partition across the communicator's ranks so the rank-local
// sum / AllReduce pattern spec.md names is genuinely exercised even though
// the node coefficient vector itself is not physically sharded in this
// implementation (see DESIGN.md).
func (d *Driver) blockPrecondition(nmat *linalg.Mat, curMap *regmap.Map) error {
	nNodes := curMap.Size()
	ndim := curMap.Ndim()
	diag := nmat.Diag()

	pm := grid.NewPartitionMap(d.Comm.NumRanks, nNodes)
	spatialPartials := make([]float64, d.Comm.NumRanks)
	lumPartials := make([]float64, d.Comm.NumRanks)
	for r := 0; r < d.Comm.NumRanks; r++ {
		begin, end := pm.Range(r)
		var sSum, lSum float64
		for block := 0; block < ndim; block++ {
			for idx := begin; idx < end; idx++ {
				sSum += diag[block*nNodes+idx]
			}
		}
		for idx := begin; idx < end; idx++ {
			lSum += diag[ndim*nNodes+idx]
		}
		spatialPartials[r] = sSum
		lumPartials[r] = lSum
	}

	spatialSum, err := d.Comm.AllReduceSum(spatialPartials)
	if err != nil {
		return errs.Wrap(errs.ErrBackend, err.Error())
	}
	lumSum, err := d.Comm.AllReduceSum(lumPartials)
	if err != nil {
		return errs.Wrap(errs.ErrBackend, err.Error())
	}

	sigmaS := spatialSum / float64(ndim*nNodes)
	sigmaL := lumSum / float64(nNodes)
	scale := 1.0
	if sigmaL != 0 {
		scale = sigmaS / sigmaL
	}

	p := make([]float64, (ndim+1)*nNodes)
	for i := 0; i < ndim*nNodes; i++ {
		p[i] = 1
	}
	for i := ndim * nNodes; i < len(p); i++ {
		p[i] = scale
	}
	nmat.ScaleRowsLeft(p)
	return nil
}
