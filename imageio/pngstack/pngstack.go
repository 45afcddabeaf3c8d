// Package pngstack is an imageio backend for single-slice 2D images
// (PNG, TIFF), promoted to depth-1 3D per spec.md section 3. Grounded on
// the teacher's extension-dispatch reader pattern
// (DG3D/mesh/readers/read_mesh.go), generalized to register itself into
// imageio's table instead of being switched on inline, and on
// golang.org/x/image/tiff, already a teacher go.mod dependency used for
// nothing else in this repository's domain.
package pngstack

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/tiff"

	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/imageio"
)

func init() {
	imageio.Register(imageio.Factory{
		Name:       "pngstack",
		Extensions: []string{"png"},
		NewLoader:  func() imageio.Loader { return loadPNG },
		NewWriter:  func() imageio.Writer { return savePNG },
	})
	imageio.Register(imageio.Factory{
		Name:       "pngstack-tiff",
		Extensions: []string{"tif", "tiff"},
		NewLoader:  func() imageio.Loader { return loadTIFF },
		NewWriter:  func() imageio.Writer { return saveTIFF },
	})
}

func loadPNG(path string) ([3]int, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [3]int{}, nil, errs.Wrapf(errs.ErrIO, "pngstack: open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return [3]int{}, nil, errs.Wrapf(errs.ErrIO, "pngstack: decode %s: %v", path, err)
	}
	return toVoxels(img)
}

func loadTIFF(path string) ([3]int, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [3]int{}, nil, errs.Wrapf(errs.ErrIO, "pngstack: open %s: %v", path, err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return [3]int{}, nil, errs.Wrapf(errs.ErrIO, "pngstack: decode %s: %v", path, err)
	}
	return toVoxels(img)
}

// toVoxels converts img to a row-major (x-fastest), depth-1 voxel buffer
// scaled to [0,1] via the Gray16 conversion, spec.md section 3's "2D is
// promoted to 3D with depth=1".
func toVoxels(img image.Image) ([3]int, []float64, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			data[y*w+x] = float64(gray.Y) / float64(0xffff)
		}
	}
	return [3]int{w, h, 1}, data, nil
}

func savePNG(path string, shape [3]int, data []float64) error {
	img, err := fromVoxels(shape, data)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(errs.ErrIO, "pngstack: create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return errs.Wrapf(errs.ErrIO, "pngstack: encode %s: %v", path, err)
	}
	return nil
}

func saveTIFF(path string, shape [3]int, data []float64) error {
	img, err := fromVoxels(shape, data)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(errs.ErrIO, "pngstack: create %s: %v", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		return errs.Wrapf(errs.ErrIO, "pngstack: encode %s: %v", path, err)
	}
	return nil
}

func fromVoxels(shape [3]int, data []float64) (image.Image, error) {
	if shape[2] != 1 {
		return nil, errs.Wrapf(errs.ErrShapeMismatch, "pngstack: cannot write a %d-deep volume as a single 2D slice", shape[2])
	}
	w, h := shape[0], shape[1]
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := data[y*w+x]
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v * 0xffff)})
		}
	}
	return img, nil
}
