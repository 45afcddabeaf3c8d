/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"image/color"

	"github.com/notargets/avs/chart2d"

	"github.com/notargets/pfire/config"
	"github.com/notargets/pfire/imageio"
	"github.com/notargets/pfire/voxel"
)

// newDebugFramePlotter returns a driver.Options.DebugFrames callback that
// persists each intermediate frame under cfg's prefix, and, when graph is
// set, live-plots the frame's central x-profile -- the teacher's
// chart2d.NewChart2D/AddSeries/Plot pattern (model_problems/Euler2D/plot.go),
// generalized from a per-timestep finite element solution plot to a
// per-inner-iteration voxel row profile.
func newDebugFramePlotter(cfg config.Config, graph bool) func(outer, inner int, mprime *voxel.Image) error {
	var chart *chart2d.Chart2D
	return func(outer, inner int, mprime *voxel.Image) error {
		path := fmt.Sprintf("%s_%03d_%03d.png", cfg.DebugFramesPrefix, outer, inner)
		if err := imageio.Save(path, mprime.Shape, mprime.Global().Data()); err != nil {
			return err
		}
		if !graph {
			return nil
		}
		profile := centerRowProfile(mprime)
		if chart == nil {
			chart = chart2d.NewChart2D(1024, 480, 0, float32(len(profile)), 0, 1)
			go chart.Plot()
		}
		x := make([]float64, len(profile))
		for i := range x {
			x[i] = float64(i)
		}
		return chart.AddSeries(
			fmt.Sprintf("gen%d-iter%d", outer, inner),
			x, profile,
			chart2d.NoGlyph, chart2d.Solid,
			color.RGBA{R: 255, A: 255},
		)
	}
}

// centerRowProfile extracts the row at the image's vertical and depth
// midpoint, a 1D intensity curve cheap enough to live-plot every inner
// iteration.
func centerRowProfile(img *voxel.Image) []float64 {
	w, h, d := img.Shape[0], img.Shape[1], img.Shape[2]
	y, z := h/2, d/2
	data := img.Global().Data()
	row := make([]float64, w)
	for x := 0; x < w; x++ {
		row[x] = data[img.Grid.Flatten(x, y, z)]
	}
	return row
}
