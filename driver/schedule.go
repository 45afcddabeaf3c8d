// Package driver implements the registration driver of spec.md 4.6 (C6):
// the node-spacing schedule, the coarse-to-fine outer loop, the inner loop,
// and the Gauss-Newton-like inner step.
package driver

import "github.com/notargets/pfire/errs"

// BuildSchedule computes the node-spacing schedule of spec.md 3 and 4.6.1:
// starting from the user-supplied target spacing, double every active
// dimension simultaneously while every image_dim/spacing exceeds 2 to find
// the coarsest spacing, then walk back down to the target by halving,
// coarsest first.
func BuildSchedule(imageShape [3]int, ndim int, target [3]int) ([][3]int, error) {
	for d := 0; d < ndim; d++ {
		if target[d] <= 0 {
			return nil, errs.Wrapf(errs.ErrInvalidArgument, "driver: nodespacing[%d] must be positive", d)
		}
	}

	coarsest := target
	for {
		candidate := doubleActive(coarsest, ndim)
		if !aboveThreshold(imageShape, ndim, candidate) {
			break
		}
		coarsest = candidate
	}

	schedule := [][3]int{coarsest}
	cur := coarsest
	for !sameSpacing(cur, target, ndim) {
		cur = halveToward(cur, target, ndim)
		schedule = append(schedule, cur)
	}
	return schedule, nil
}

func doubleActive(s [3]int, ndim int) [3]int {
	next := s
	for d := 0; d < ndim; d++ {
		next[d] = s[d] * 2
	}
	return next
}

func aboveThreshold(imageShape [3]int, ndim int, spacing [3]int) bool {
	for d := 0; d < ndim; d++ {
		if spacing[d] <= 0 || imageShape[d]/spacing[d] <= 2 {
			return false
		}
	}
	return true
}

func halveToward(cur, target [3]int, ndim int) [3]int {
	next := cur
	for d := 0; d < ndim; d++ {
		h := cur[d] / 2
		if h < target[d] {
			h = target[d]
		}
		next[d] = h
	}
	return next
}

func sameSpacing(a, b [3]int, ndim int) bool {
	for d := 0; d < ndim; d++ {
		if a[d] != b[d] {
			return false
		}
	}
	return true
}
