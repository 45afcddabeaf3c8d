// Package errs defines the error kinds used across pfire, matching the
// error model in SPEC_FULL.md section 7. Callers use errors.Is against the
// sentinels below to classify a failure, the way utils.BCType values in the
// teacher package are matched by a small lookup rather than string sniffing.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a missing required option or malformed configuration
	// value, reported pre-run with a non-zero exit.
	ErrConfig = errors.New("config error")
	// ErrIO marks an image load or save failure.
	ErrIO = errors.New("io error")
	// ErrShapeMismatch marks mismatched fixed/moved shapes or a nodespacing
	// rank that disagrees with the image rank.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrBackend marks a failure surfaced from the distributed
	// linear-algebra backend; always fatal.
	ErrBackend = errors.New("backend error")
	// ErrNonConverged marks an inner loop that exhausted its iteration
	// budget without meeting the convergence threshold. Not fatal.
	ErrNonConverged = errors.New("did not converge")
	// ErrInvalidArgument marks a caller-supplied value that does not match
	// the grid or shape it is checked against.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Wrap annotates msg with kind so errors.Is(err, kind) still matches.
func Wrap(kind error, msg string) error {
	return fmt.Errorf("%s: %w", msg, kind)
}

// Wrapf is Wrap with printf-style formatting of the message.
func Wrapf(kind error, format string, args ...interface{}) error {
	return Wrap(kind, fmt.Sprintf(format, args...))
}
