package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// gmresSolve is a restarted GMRES(opts.Restart) implementation. No example
// in the retrieved pack ships a sparse GMRES (only CG, via
// github.com/jvlmdr/go-cg), so this is built on the standard library plus
// gonum/mat for the small dense Hessenberg least-squares solve -- see
// DESIGN.md for why no third-party GMRES could be wired in instead.
func gmresSolve(A *Mat, b *Vec, x0 *Vec, opts KSPOptions) (*Vec, KSPInfo, error) {
	n := b.Len()
	restart := opts.Restart
	if restart <= 0 || restart > n {
		restart = n
	}
	bn := b.Raw().Norm(2)

	x := NewVec(n)
	if x0 != nil {
		copy(x.Data(), x0.Data())
	}

	totalIter := 0
	for outer := 0; outer*restart < opts.MaxIter; outer++ {
		r := A.MulVec(x)
		r.AddScaled(b, -1)
		r.Scale(-1) // r = b - A*x
		beta := r.Raw().Norm(2)
		if bn == 0 || beta/bn <= opts.Tolerance {
			return x, KSPInfo{Iterations: totalIter, Residual: beta, Converged: true}, nil
		}

		v := make([]*Vec, restart+1)
		v[0] = r.Copy()
		v[0].Scale(1 / beta)

		h := mat.NewDense(restart+1, restart, nil)
		cs := make([]float64, restart)
		sn := make([]float64, restart)
		g := make([]float64, restart+1)
		g[0] = beta

		m := restart
		for j := 0; j < restart; j++ {
			totalIter++
			w := A.MulVec(v[j])
			for i := 0; i <= j; i++ {
				hij := dot(w, v[i])
				h.Set(i, j, hij)
				w.AddScaled(v[i], -hij)
			}
			hNext := w.Raw().Norm(2)
			h.Set(j+1, j, hNext)

			for i := 0; i < j; i++ {
				applyGivens(h, i, j, cs[i], sn[i])
			}
			c, s := givens(h.At(j, j), h.At(j+1, j))
			cs[j], sn[j] = c, s
			h.Set(j, j, c*h.At(j, j)+s*h.At(j+1, j))
			h.Set(j+1, j, 0)
			g[j+1] = -s * g[j]
			g[j] = c * g[j]

			if hNext == 0 {
				m = j + 1
				break
			}
			v[j+1] = w
			v[j+1].Scale(1 / hNext)

			if math.Abs(g[j+1])/bn <= opts.Tolerance {
				m = j + 1
				break
			}
		}

		y := solveUpperTriangular(h, g, m)
		for i := 0; i < m; i++ {
			x.AddScaled(v[i], y[i])
		}
	}

	r := A.MulVec(x)
	r.AddScaled(b, -1)
	res := r.Raw().Norm(2)
	converged := bn == 0 || res/bn <= opts.Tolerance
	return x, KSPInfo{Iterations: totalIter, Residual: res, Converged: converged}, nil
}

func dot(a, b *Vec) float64 {
	ad, bd := a.Data(), b.Data()
	var s float64
	for i := range ad {
		s += ad[i] * bd[i]
	}
	return s
}

func givens(a, b float64) (c, s float64) {
	if b == 0 {
		return 1, 0
	}
	if math.Abs(b) > math.Abs(a) {
		t := a / b
		s = 1 / math.Sqrt(1+t*t)
		c = s * t
	} else {
		t := b / a
		c = 1 / math.Sqrt(1+t*t)
		s = c * t
	}
	return
}

func applyGivens(h *mat.Dense, i, j int, c, s float64) {
	a := h.At(i, j)
	b := h.At(i+1, j)
	h.Set(i, j, c*a+s*b)
	h.Set(i+1, j, -s*a+c*b)
}

func solveUpperTriangular(h *mat.Dense, g []float64, m int) []float64 {
	y := make([]float64, m)
	for i := m - 1; i >= 0; i-- {
		sum := g[i]
		for k := i + 1; k < m; k++ {
			sum -= h.At(i, k) * y[k]
		}
		y[i] = sum / h.At(i, i)
	}
	return y
}
