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

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/pfire/config"
	"github.com/notargets/pfire/driver"
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/grid"
	"github.com/notargets/pfire/imageio"
	"github.com/notargets/pfire/imageio/boltgroup"
	"github.com/notargets/pfire/regmap"
	"github.com/notargets/pfire/voxel"
)

// runRegister is rootCmd's RunE: load fixed/moved, run the coarse-to-fine
// registration, and persist the outputs spec.md section 6 names.
func runRegister(cmd *cobra.Command, args []string) error {
	if viper.GetBool("cpuprofile") {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	nodeSpacing, err := parseNodeSpacing(args[2:])
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Fixed = args[0]
	cfg.Moved = args[1]
	cfg.NodeSpacing = nodeSpacing
	cfg.Mask = viper.GetString("mask")
	cfg.Registered = viper.GetString("registered")
	cfg.Map = viper.GetString("map")
	cfg.Verbose = viper.GetBool("verbose")
	cfg.DebugFrames = viper.GetBool("debug_frames")
	cfg.DebugFramesPrefix = viper.GetString("debug_frames_prefix")
	cfg.LumRegWeight = viper.GetFloat64("lum-reg-weight")
	cfg.InitialLambda = viper.GetFloat64("initial-lambda")
	cfg.MaxInnerIter = viper.GetInt("max-inner-iter")
	cfg.ConvThreshold = viper.GetFloat64("conv-threshold")
	cfg.KSPType = viper.GetString("ksp-type")
	cfg.KSPTolerance = viper.GetFloat64("ksp-tolerance")
	cfg.KSPMaxIter = viper.GetInt("ksp-max-iter")
	cfg.KSPRestart = viper.GetInt("ksp-restart")
	cfg.NumRanks = viper.GetInt("num-ranks")

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Verbose {
		fmt.Println(cfg.String())
		if y, err := cfg.YAML(); err == nil {
			fmt.Println(y)
		}
	}

	fixedShape, fixedData, err := imageio.Load(cfg.Fixed)
	if err != nil {
		return err
	}
	movedShape, movedData, err := imageio.Load(cfg.Moved)
	if err != nil {
		return err
	}
	if fixedShape != movedShape {
		return fmt.Errorf("fixed shape %v does not match moved shape %v", fixedShape, movedShape)
	}

	comm := grid.NewComm(cfg.NumRanks)
	defer comm.Close()
	g, err := grid.NewGrid(comm, fixedShape, 1)
	if err != nil {
		return err
	}

	f, err := voxel.NewImageFromData(comm, g, fixedData)
	if err != nil {
		return err
	}
	if err := f.Normalize(); err != nil {
		return err
	}
	m, err := voxel.NewImageFromData(comm, g, movedData)
	if err != nil {
		return err
	}
	if err := m.Normalize(); err != nil {
		return err
	}

	opts := cfg.DriverOptions()
	if cfg.DebugFrames {
		opts.DebugFrames = newDebugFramePlotter(cfg, viper.GetBool("graph"))
	}

	d := driver.New(comm, g, opts)
	result, err := d.Autoregister(f, m)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		for gi, gr := range result.Generations {
			fmt.Printf("generation %d: spacing=%v iterations=%d converged=%v a_max=%g\n",
				gi, gr.Spacing, gr.Iterations, gr.Converged, gr.AMax)
			if gr.KSPNonConverged {
				fmt.Println(errs.Wrap(errs.ErrNonConverged, fmt.Sprintf("generation %d: Krylov solve did not reach tolerance on at least one iteration", gi)))
			}
		}
	}

	if cfg.Registered != "" {
		if err := saveRegistered(cfg.Registered, result.Mprime); err != nil {
			return err
		}
	}
	if cfg.Map != "" {
		if err := saveMap(cfg.Map, result.Map); err != nil {
			return err
		}
	}
	return nil
}

func saveRegistered(dest string, img *voxel.Image) error {
	path, group := parseDestination(dest, "registered")
	if !isBoltPath(path) {
		return imageio.Save(path, img.Shape, img.Global().Data())
	}
	db, err := boltgroup.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return boltgroup.WriteGroup(db, group, boltgroup.Meta{Shape: img.Shape}, img.Global().Data())
}

func saveMap(dest string, m *regmap.Map) error {
	path, group := parseDestination(dest, "map")
	db, err := boltgroup.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	meta := boltgroup.Meta{NDim: m.Ndim(), Spacing: m.Spacing}
	return boltgroup.WriteGroup(db, group, meta, m.Coefficients().Data())
}

func isBoltPath(path string) bool {
	return len(path) > len(".pfiredb") && path[len(path)-len(".pfiredb"):] == ".pfiredb"
}
