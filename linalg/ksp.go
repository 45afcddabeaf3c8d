package linalg

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jvlmdr/go-cg/cg"
)

// KSPType selects the Krylov solver used for the normal-equation solve in
// spec.md 4.6.3 step 7, mirroring the way utils.BCType in the teacher is a
// small enum with a String() and a case-insensitive name parser.
type KSPType int

const (
	// KSPCG is conjugate gradient, the default for the symmetric
	// positive-(semi)definite normal matrix this solver always produces.
	KSPCG KSPType = iota
	// KSPGMRES is restarted GMRES, offered for parity with spec.md 6's
	// "solver type is externally configurable" even though Nmat is always
	// symmetric here.
	KSPGMRES
)

func (t KSPType) String() string {
	switch t {
	case KSPGMRES:
		return "gmres"
	default:
		return "cg"
	}
}

// ParseKSPType parses a solver name from configuration, defaulting to CG
// for anything unrecognized.
func ParseKSPType(s string) KSPType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gmres":
		return KSPGMRES
	default:
		return KSPCG
	}
}

// KSPOptions configures the Krylov solve.
type KSPOptions struct {
	Type       KSPType
	Tolerance  float64
	MaxIter    int
	Restart    int // GMRES restart length; ignored by CG
}

// DefaultKSPOptions returns the baseline solver configuration.
func DefaultKSPOptions() KSPOptions {
	return KSPOptions{Type: KSPCG, Tolerance: 1e-6, MaxIter: 200, Restart: 30}
}

// KSPInfo reports what happened during the solve.
type KSPInfo struct {
	Iterations int
	Residual   float64
	Converged  bool
}

// KSPSolve solves A*x = b for x, starting from x0 (nil means zero), using
// the configured Krylov method. A is expected symmetric positive
// semi-definite (the regularized Gauss-Newton normal matrix), but the
// method itself does not enforce that.
func KSPSolve(A *Mat, b *Vec, x0 *Vec, opts KSPOptions) (*Vec, KSPInfo, error) {
	switch opts.Type {
	case KSPGMRES:
		return gmresSolve(A, b, x0, opts)
	default:
		return cgSolve(A, b, x0, opts)
	}
}

func matvec(A *Mat) func([]float64) []float64 {
	return func(x []float64) []float64 {
		y := A.MulVec(NewVecFromData(x))
		return y.Data()
	}
}

// cgSolve wraps github.com/jvlmdr/go-cg/cg.Solve, the operator-closure CG
// implementation grounded on other_examples/jvlmdr-shift-invar__invmul_cg.go.
func cgSolve(A *Mat, b *Vec, x0 *Vec, opts KSPOptions) (*Vec, KSPInfo, error) {
	n := b.Len()
	x := make([]float64, n)
	if x0 != nil {
		copy(x, x0.Data())
	}
	rhs := make([]float64, n)
	copy(rhs, b.Data())

	var debug bytes.Buffer
	sol, err := cg.Solve(matvec(A), rhs, x, opts.Tolerance, opts.MaxIter, &debug)
	if err != nil {
		return nil, KSPInfo{}, fmt.Errorf("linalg: cg solve failed: %w", err)
	}
	result := NewVecFromData(sol)
	res := residualNorm(A, result, b)
	bn := b.Raw().Norm(2)
	converged := bn == 0 || res/bn <= opts.Tolerance
	return result, KSPInfo{Iterations: opts.MaxIter, Residual: res, Converged: converged}, nil
}

func residualNorm(A *Mat, x, b *Vec) float64 {
	r := A.MulVec(x)
	r.AddScaled(b, -1) // r = A*x - b
	return r.Raw().Norm(2)
}
