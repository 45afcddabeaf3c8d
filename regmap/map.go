// Package regmap implements the Map (C4) of spec.md section 3 and 4.4: a
// displacement-plus-luminance coefficient field on a regular node grid
// coarser than the image, together with its basis and Laplacian operators.
package regmap

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/notargets/pfire/basis"
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/laplacian"
	"github.com/notargets/pfire/linalg"
	"github.com/notargets/pfire/voxel"
)

// Map owns the node grid, the packed coefficient vector a, and the basis
// and Laplacian operators built from it, per spec.md section 3's Map
// attributes.
type Map struct {
	ImageShape [3]int
	NodeShape  [3]int
	Spacing    [3]int
	Origin     [3]float64
	NDim       int
	LumWeight  float64

	b        *linalg.Mat
	bEntries []linalg.Entry
	l        *linalg.Mat
	lEntries []linalg.Entry

	a *linalg.Vec
}

// New builds a zero-displacement, zero-luminance map for imageShape at
// nodespacing, per spec.md section 3's node shape formula N =
// ceil(image_shape/nodespacing) + ghost layer.
func New(imageShape, nodespacing [3]int, ndim int, lumWeight float64) (*Map, error) {
	if ndim != 2 && ndim != 3 {
		return nil, errs.Wrapf(errs.ErrInvalidArgument, "regmap: ndim must be 2 or 3, got %d", ndim)
	}
	var nodeShape [3]int
	var spacing [3]int
	nodeShape[2], spacing[2] = 1, 1
	for d := 0; d < ndim; d++ {
		if nodespacing[d] <= 0 {
			return nil, errs.Wrapf(errs.ErrInvalidArgument, "regmap: nodespacing[%d] must be positive", d)
		}
		spacing[d] = nodespacing[d]
		nodeShape[d] = ceilDiv(imageShape[d], nodespacing[d]) + 1
	}

	m := &Map{
		ImageShape: imageShape,
		NodeShape:  nodeShape,
		Spacing:    spacing,
		Origin:     [3]float64{0, 0, 0},
		NDim:       ndim,
		LumWeight:  lumWeight,
	}
	if err := m.rebuildOperators(); err != nil {
		return nil, err
	}
	m.a = linalg.NewVec((ndim + 1) * m.Size())
	return m, nil
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

func (m *Map) rebuildOperators() error {
	b, err := basis.Build(basis.Options{
		ImageShape: m.ImageShape,
		NodeShape:  m.NodeShape,
		Spacing:    m.Spacing,
		Origin:     m.Origin,
		NDim:       m.NDim,
	})
	if err != nil {
		return err
	}
	l, lEntries, err := laplacian.Build(laplacian.Options{
		NodeShape: m.NodeShape,
		NDim:      m.NDim,
		LumWeight: m.LumWeight,
	})
	if err != nil {
		return err
	}
	m.b = b
	m.l = l
	m.lEntries = lEntries
	return nil
}

// Size returns |N|, the node count.
func (m *Map) Size() int { return m.NodeShape[0] * m.NodeShape[1] * m.NodeShape[2] }

// Ndim returns D.
func (m *Map) Ndim() int { return m.NDim }

// Basis returns B.
func (m *Map) Basis() *linalg.Mat { return m.b }

// Laplacian returns L and its retained coordinate list, for callers (the
// driver's regularization step) that need to add L into a matrix with an
// unrelated nonzero pattern via linalg.Mat.AddScaledEntries.
func (m *Map) Laplacian() (*linalg.Mat, []linalg.Entry) { return m.l, m.lEntries }

// Coefficients returns the packed vector a.
func (m *Map) Coefficients() *linalg.Vec { return m.a }

// Update performs a <- a + delta, spec.md 4.4's update(delta_a).
func (m *Map) Update(delta *linalg.Vec) error {
	if delta.Len() != m.a.Len() {
		return errs.Wrapf(errs.ErrShapeMismatch, "regmap: update delta length %d does not match |a|=%d", delta.Len(), m.a.Len())
	}
	m.a.AddScaled(delta, 1.0)
	return nil
}

// blockField returns B * a restricted to one of the D+1 coefficient
// blocks, i.e. the image-space field that block alone contributes: the
// spatial displacement component d (block=d, 0<=d<D) or the luminance
// correction (block=D).
func (m *Map) blockField(block int) *linalg.Vec {
	n := m.Size()
	masked := linalg.NewVec(m.a.Len())
	src := m.a.Data()
	dst := masked.Data()
	copy(dst[block*n:(block+1)*n], src[block*n:(block+1)*n])
	return m.b.MulVec(masked)
}

// Warp computes M'(x) = resample(M, x+d(x)) + beta(x), per spec.md 4.4's
// warp operation: the spatial blocks of B*a give a per-voxel displacement,
// M is trilinearly resampled at the displaced position (clamped to the
// image bounds), and the luminance block of B*a is added.
func (m *Map) Warp(image *voxel.Image) (*voxel.Image, error) {
	if image.Shape != m.ImageShape {
		return nil, errs.Wrapf(errs.ErrShapeMismatch, "regmap: warp image shape %v does not match map image shape %v", image.Shape, m.ImageShape)
	}
	fields := make([]*linalg.Vec, m.NDim+1)
	for block := 0; block <= m.NDim; block++ {
		fields[block] = m.blockField(block)
	}

	out, err := voxel.NewImage(image.Comm, image.Grid)
	if err != nil {
		return nil, err
	}
	outData := out.Global().Data()
	shape := m.ImageShape
	g := image.Grid

	for k := 0; k < shape[2]; k++ {
		for j := 0; j < shape[1]; j++ {
			for i := 0; i < shape[0]; i++ {
				row := g.Flatten(i, j, k)
				dx := fields[0].At(row)
				dy := 0.0
				if m.NDim > 1 {
					dy = fields[1].At(row)
				}
				dz := 0.0
				if m.NDim > 2 {
					dz = fields[2].At(row)
				}
				beta := fields[m.NDim].At(row)
				val := sampleTrilinear(image, float64(i)+dx, float64(j)+dy, float64(k)+dz)
				outData[row] = val + beta
			}
		}
	}
	return out, nil
}

func sampleTrilinear(image *voxel.Image, x, y, z float64) float64 {
	shape := image.Shape
	x = clampf(x, 0, float64(shape[0]-1))
	y = clampf(y, 0, float64(shape[1]-1))
	z = clampf(z, 0, float64(shape[2]-1))

	i0 := int(math.Floor(x))
	j0 := int(math.Floor(y))
	k0 := int(math.Floor(z))
	fx, fy, fz := x-float64(i0), y-float64(j0), z-float64(k0)

	data := image.Global().Data()
	g := image.Grid
	sample := func(di, dj, dk int) float64 {
		ii := clampi(i0+di, shape[0]-1)
		jj := clampi(j0+dj, shape[1]-1)
		kk := clampi(k0+dk, shape[2]-1)
		return data[g.Flatten(ii, jj, kk)]
	}

	c00 := sample(0, 0, 0)*(1-fx) + sample(1, 0, 0)*fx
	c10 := sample(0, 1, 0)*(1-fx) + sample(1, 1, 0)*fx
	c01 := sample(0, 0, 1)*(1-fx) + sample(1, 0, 1)*fx
	c11 := sample(0, 1, 1)*(1-fx) + sample(1, 1, 1)*fx
	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampi(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Interpolate builds a new map at newSpacing whose initial coefficients
// sample the current displacement/luminance field at the new node
// positions, linear in node space, per spec.md 4.4's interpolate op.
func (m *Map) Interpolate(newSpacing [3]int) (*Map, error) {
	next, err := New(m.ImageShape, newSpacing, m.NDim, m.LumWeight)
	if err != nil {
		return nil, err
	}
	n := next.Size()
	dst := next.a.Data()
	for block := 0; block <= m.NDim; block++ {
		for idx := 0; idx < n; idx++ {
			node := unflattenNode(idx, next.NodeShape)
			pos := mgl64.Vec3{
				float64(node[0])*float64(next.Spacing[0]) + next.Origin[0],
				float64(node[1])*float64(next.Spacing[1]) + next.Origin[1],
				float64(node[2])*float64(next.Spacing[2]) + next.Origin[2],
			}
			dst[block*n+idx] = m.sampleCoefficient(block, pos)
		}
	}
	return next, nil
}

// sampleCoefficient trilinearly interpolates block's coefficient field,
// defined on m's node grid, at image-space position pos.
func (m *Map) sampleCoefficient(block int, pos mgl64.Vec3) float64 {
	n := m.Size()
	offset := block * n
	data := m.a.Data()[offset : offset+n]

	var p [3]float64
	for d := 0; d < 3; d++ {
		if d < m.NDim {
			p[d] = (pos[d] - m.Origin[d]) / float64(m.Spacing[d])
			p[d] = clampf(p[d], 0, float64(m.NodeShape[d]-1))
		}
	}

	i0 := int(math.Floor(p[0]))
	j0 := int(math.Floor(p[1]))
	k0 := int(math.Floor(p[2]))
	fx, fy, fz := p[0]-float64(i0), p[1]-float64(j0), p[2]-float64(k0)
	if m.NDim < 3 {
		k0, fz = 0, 0
	}
	if m.NDim < 2 {
		j0, fy = 0, 0
	}

	sample := func(di, dj, dk int) float64 {
		ii := clampi(i0+di, m.NodeShape[0]-1)
		jj := clampi(j0+dj, m.NodeShape[1]-1)
		kk := clampi(k0+dk, m.NodeShape[2]-1)
		return data[flattenNode([3]int{ii, jj, kk}, m.NodeShape)]
	}

	c00 := sample(0, 0, 0)*(1-fx) + sample(1, 0, 0)*fx
	c10 := sample(0, 1, 0)*(1-fx) + sample(1, 1, 0)*fx
	c01 := sample(0, 0, 1)*(1-fx) + sample(1, 0, 1)*fx
	c11 := sample(0, 1, 1)*(1-fx) + sample(1, 1, 1)*fx
	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

func unflattenNode(idx int, shape [3]int) [3]int {
	i := idx % shape[0]
	rest := idx / shape[0]
	j := rest % shape[1]
	k := rest / shape[1]
	return [3]int{i, j, k}
}

func flattenNode(node [3]int, shape [3]int) int {
	return (node[2]*shape[1]+node[1])*shape[0] + node[0]
}
