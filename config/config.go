// Package config defines the registration tool's option surface, spec.md
// section 6's configuration table realized as a struct that cmd binds
// through viper (flags, PFIRE_-prefixed environment, and an optional YAML
// file), the same three-source pattern the teacher wires viper for in
// cmd/2D.go's InputParameters, generalized from a single YAML file onto
// viper's full precedence stack.
package config

import (
	"fmt"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/pfire/driver"
	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/linalg"
)

// Config is the full set of options spec.md section 6 names, plus the
// solver knobs driver and linalg already expose.
type Config struct {
	Fixed       string `mapstructure:"fixed" json:"fixed"`
	Moved       string `mapstructure:"moved" json:"moved"`
	NodeSpacing []int  `mapstructure:"nodespacing" json:"nodespacing"`
	Mask        string `mapstructure:"mask" json:"mask,omitempty"`
	Registered  string `mapstructure:"registered" json:"registered,omitempty"`
	Map         string `mapstructure:"map" json:"map,omitempty"`

	Verbose           bool   `mapstructure:"verbose" json:"verbose"`
	DebugFrames       bool   `mapstructure:"debug_frames" json:"debug_frames"`
	DebugFramesPrefix string `mapstructure:"debug_frames_prefix" json:"debug_frames_prefix,omitempty"`

	LumRegWeight  float64 `mapstructure:"lum-reg-weight" json:"lum_reg_weight"`
	InitialLambda float64 `mapstructure:"initial-lambda" json:"initial_lambda"`
	MaxInnerIter  int     `mapstructure:"max-inner-iter" json:"max_inner_iter"`
	ConvThreshold float64 `mapstructure:"conv-threshold" json:"conv_threshold"`

	KSPType      string  `mapstructure:"ksp-type" json:"ksp_type"`
	KSPTolerance float64 `mapstructure:"ksp-tolerance" json:"ksp_tolerance"`
	KSPMaxIter   int     `mapstructure:"ksp-max-iter" json:"ksp_max_iter"`
	KSPRestart   int     `mapstructure:"ksp-restart" json:"ksp_restart"`

	NumRanks int `mapstructure:"num-ranks" json:"num_ranks"`
}

// Default returns a Config carrying the same baseline values as
// driver.DefaultOptions and linalg.DefaultKSPOptions, with no
// fixed/moved/nodespacing set -- those are always required from the
// caller.
func Default() Config {
	def := driver.DefaultOptions(3, [3]int{1, 1, 1})
	ksp := linalg.DefaultKSPOptions()
	return Config{
		LumRegWeight:  def.LumWeight,
		InitialLambda: def.InitialLambda,
		MaxInnerIter:  def.MaxInnerIter,
		ConvThreshold: def.ConvThreshold,
		KSPType:       ksp.Type.String(),
		KSPTolerance:  ksp.Tolerance,
		KSPMaxIter:    ksp.MaxIter,
		KSPRestart:    ksp.Restart,
		NumRanks:      1,
	}
}

// Validate enforces spec.md section 7's ConfigError conditions: missing
// required options, and malformed values that cannot be caught any other
// way before the run starts.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Fixed) == "" {
		return errs.Wrap(errs.ErrConfig, "config: fixed image path is required")
	}
	if strings.TrimSpace(c.Moved) == "" {
		return errs.Wrap(errs.ErrConfig, "config: moved image path is required")
	}
	if len(c.NodeSpacing) == 0 {
		return errs.Wrap(errs.ErrConfig, "config: nodespacing is required")
	}
	if len(c.NodeSpacing) > 3 {
		return errs.Wrapf(errs.ErrConfig, "config: nodespacing has %d components, at most 3 are supported", len(c.NodeSpacing))
	}
	for i, s := range c.NodeSpacing {
		if s <= 0 {
			return errs.Wrapf(errs.ErrConfig, "config: nodespacing[%d] = %d must be positive", i, s)
		}
	}
	if c.MaxInnerIter <= 0 {
		return errs.Wrap(errs.ErrConfig, "config: max-inner-iter must be positive")
	}
	if c.ConvThreshold <= 0 {
		return errs.Wrap(errs.ErrConfig, "config: conv-threshold must be positive")
	}
	if c.LumRegWeight < 0 {
		return errs.Wrap(errs.ErrConfig, "config: lum-reg-weight must be non-negative")
	}
	if c.KSPTolerance <= 0 {
		return errs.Wrap(errs.ErrConfig, "config: ksp-tolerance must be positive")
	}
	if c.KSPMaxIter <= 0 {
		return errs.Wrap(errs.ErrConfig, "config: ksp-max-iter must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.KSPType)) {
	case "cg", "gmres":
	default:
		return errs.Wrapf(errs.ErrConfig, "config: ksp-type %q is not one of cg, gmres", c.KSPType)
	}
	if c.NumRanks <= 0 {
		return errs.Wrap(errs.ErrConfig, "config: num-ranks must be positive")
	}
	return nil
}

// TargetSpacing pads NodeSpacing out to the fixed [3]int layout grid and
// driver use, filling unspecified trailing dimensions with 1 the way a 2D
// registration leaves the depth axis at 1.
func (c Config) TargetSpacing() [3]int {
	out := [3]int{1, 1, 1}
	for i := 0; i < 3 && i < len(c.NodeSpacing); i++ {
		out[i] = c.NodeSpacing[i]
	}
	return out
}

// NDim reports the registration's spatial dimensionality from how many
// nodespacing components were supplied.
func (c Config) NDim() int {
	n := len(c.NodeSpacing)
	if n < 1 {
		return 1
	}
	if n > 3 {
		return 3
	}
	return n
}

// DriverOptions builds a driver.Options from this Config, the bridge
// between the CLI's flat option surface and the driver package's
// strongly-typed knobs.
func (c Config) DriverOptions() driver.Options {
	opts := driver.DefaultOptions(c.NDim(), c.TargetSpacing())
	opts.LumWeight = c.LumRegWeight
	opts.InitialLambda = c.InitialLambda
	opts.MaxInnerIter = c.MaxInnerIter
	opts.ConvThreshold = c.ConvThreshold
	opts.KSP = linalg.KSPOptions{
		Type:      linalg.ParseKSPType(c.KSPType),
		Tolerance: c.KSPTolerance,
		MaxIter:   c.KSPMaxIter,
		Restart:   c.KSPRestart,
	}
	return opts
}

// String renders a Config for --verbose startup logging, the way the
// teacher's InputParameters is logged via its own String in cmd/2D.go.
func (c Config) String() string {
	return fmt.Sprintf(
		"fixed=%s moved=%s nodespacing=%v mask=%s registered=%s map=%s lum-reg-weight=%g ksp-type=%s ksp-tolerance=%g num-ranks=%d",
		c.Fixed, c.Moved, c.NodeSpacing, c.Mask, c.Registered, c.Map, c.LumRegWeight, c.KSPType, c.KSPTolerance, c.NumRanks,
	)
}

// YAML renders the full resolved Config as YAML, for --verbose startup
// logging of every option (not just the summary String prints), mirroring
// the teacher's own yaml.Unmarshal-based InputParameters but in the
// opposite direction -- showing the operator what was actually resolved
// after flags, environment, and any config file were merged by viper.
func (c Config) YAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", errs.Wrap(errs.ErrConfig, err.Error())
	}
	return string(b), nil
}
