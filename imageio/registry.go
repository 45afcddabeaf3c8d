// Package imageio is the polymorphic loader/writer registry spec.md 9
// names as an explicit design note: a table mapping filename extension to
// a (name, extensions, factory) entry, generalized from the teacher's
// DG3D/mesh/readers/read_mesh.go extension switch into an actual registry
// so new backends can be added without touching call sites.
package imageio

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/notargets/pfire/errs"
)

// Loader reads an image file into a flat row-major (x-fastest) voxel
// buffer and its shape. 2D formats return shape[2]==1.
type Loader func(path string) (shape [3]int, data []float64, err error)

// Writer persists a flat row-major voxel buffer of the given shape.
type Writer func(path string, shape [3]int, data []float64) error

// Factory is one registry entry: a name, the extensions it claims, and
// constructors for its loader and writer. A variant that only supports
// one direction leaves the other nil.
type Factory struct {
	Name       string
	Extensions []string
	NewLoader  func() Loader
	NewWriter  func() Writer
}

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds factory under every extension it claims, replacing any
// existing registration for that extension -- add variants without
// touching call sites, per spec.md 9's "dynamic dispatch in loader
// selection" note.
func Register(factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	for _, ext := range factory.Extensions {
		registry[normalize(ext)] = factory
	}
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func lookup(path string) (Factory, error) {
	ext := normalize(filepath.Ext(path))
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[ext]
	if !ok {
		return Factory{}, errs.Wrapf(errs.ErrIO, "imageio: no loader/writer registered for extension %q", ext)
	}
	return f, nil
}

// Load dispatches to the registered loader for path's extension.
func Load(path string) (shape [3]int, data []float64, err error) {
	f, err := lookup(path)
	if err != nil {
		return shape, nil, err
	}
	if f.NewLoader == nil {
		return shape, nil, errs.Wrapf(errs.ErrIO, "imageio: %s has no loader", f.Name)
	}
	return f.NewLoader()(path)
}

// Save dispatches to the registered writer for path's extension.
func Save(path string, shape [3]int, data []float64) error {
	f, err := lookup(path)
	if err != nil {
		return err
	}
	if f.NewWriter == nil {
		return errs.Wrapf(errs.ErrIO, "imageio: %s has no writer", f.Name)
	}
	return f.NewWriter()(path, shape, data)
}
