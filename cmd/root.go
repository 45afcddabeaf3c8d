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
	"os"
	"strconv"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd implements spec.md section 6's single CLI verb: pfire <fixed>
// <moved> <nodespacing...>. There is no subcommand tree here the way the
// teacher's cmd package splits 1D/2D -- registration is the only thing
// this tool does, so the root command carries the Run itself.
var rootCmd = &cobra.Command{
	Use:   "pfire <fixed> <moved> <nodespacing...>",
	Short: "Coarse-to-fine elastic image registration",
	Long: `pfire registers a moved image onto a fixed image by solving a
sequence of regularized Gauss-Newton problems for a displacement and
luminance correction map, coarsest to finest node spacing.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runRegister,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pfire.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")
	rootCmd.PersistentFlags().String("mask", "", "reserved; currently ignored")
	rootCmd.PersistentFlags().String("registered", "", "output location for the warped image, path[:group]")
	rootCmd.PersistentFlags().String("map", "", "output location for the map coefficients, path[:group]")
	rootCmd.PersistentFlags().Bool("debug_frames", false, "emit intermediate frames")
	rootCmd.PersistentFlags().String("debug_frames_prefix", "frame", "filename prefix for debug frames")
	rootCmd.PersistentFlags().Float64("lum-reg-weight", 1.0, "luminance block Laplacian weight")
	rootCmd.PersistentFlags().Float64("initial-lambda", 20.0, "initial Tikhonov regularization weight")
	rootCmd.PersistentFlags().Int("max-inner-iter", 50, "maximum Gauss-Newton iterations per generation")
	rootCmd.PersistentFlags().Float64("conv-threshold", 0.1, "inner loop convergence threshold on a_max")
	rootCmd.PersistentFlags().String("ksp-type", "cg", "Krylov solver: cg or gmres")
	rootCmd.PersistentFlags().Float64("ksp-tolerance", 1e-6, "Krylov solver residual tolerance")
	rootCmd.PersistentFlags().Int("ksp-max-iter", 200, "Krylov solver maximum iterations")
	rootCmd.PersistentFlags().Int("ksp-restart", 30, "GMRES restart length")
	rootCmd.PersistentFlags().Int("num-ranks", 1, "number of simulated domain-decomposition ranks")
	rootCmd.PersistentFlags().Bool("graph", false, "display a debug plot while registering")
	rootCmd.PersistentFlags().Bool("cpuprofile", false, "write a CPU profile of the registration run")

	for _, name := range []string{
		"verbose", "mask", "registered", "map", "debug_frames", "debug_frames_prefix",
		"lum-reg-weight", "initial-lambda", "max-inner-iter", "conv-threshold",
		"ksp-type", "ksp-tolerance", "ksp-max-iter", "ksp-restart", "num-ranks", "graph", "cpuprofile",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set, the same
// three-source precedence (flag > env > file > default) the teacher's
// cobra+viper go.mod pairing exists to provide but never wires up.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".pfire")
	}

	viper.SetEnvPrefix("PFIRE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viperVerbose() {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func viperVerbose() bool { return viper.GetBool("verbose") }

// parseNodeSpacing parses the trailing positional arguments (everything
// after fixed and moved) as the per-axis target node spacing spec.md
// section 6 requires.
func parseNodeSpacing(args []string) ([]int, error) {
	spacing := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("nodespacing component %q is not an integer: %w", a, err)
		}
		spacing[i] = v
	}
	return spacing, nil
}
