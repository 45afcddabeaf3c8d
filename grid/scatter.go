package grid

import "github.com/notargets/pfire/linalg"

// Scatter is the begin/end communication primitive spec.md 4.5 and 5
// require: Begin issues the work without blocking, End blocks until it
// completes. Workspace and the driver always issue every Begin before any
// End, to expose the overlap spec.md 5 calls out explicitly ("The code
// pattern issues all begins then all ends").
type Scatter struct {
	done chan error
}

// BeginGlobalToLocal starts an asynchronous sync of global into local's
// interior and ghost layers on rank, returning immediately.
func (g *Grid) BeginGlobalToLocal(rank int, global *linalg.Vec, local *GhostVec) *Scatter {
	s := &Scatter{done: make(chan error, 1)}
	go func() {
		s.done <- g.GlobalToLocal(rank, global, local)
	}()
	return s
}

// End blocks until the scatter completes and returns its error, if any.
func (s *Scatter) End() error {
	return <-s.done
}
