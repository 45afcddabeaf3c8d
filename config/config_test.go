package config

import (
	"testing"

	"github.com/notargets/pfire/linalg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	c := Default()
	c.Fixed = "fixed.png"
	c.Moved = "moved.png"
	c.NodeSpacing = []int{4, 4}
	return c
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingFixed(t *testing.T) {
	c := validConfig()
	c.Fixed = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsMissingNodeSpacing(t *testing.T) {
	c := validConfig()
	c.NodeSpacing = nil
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveNodeSpacing(t *testing.T) {
	c := validConfig()
	c.NodeSpacing = []int{4, 0}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownKSPType(t *testing.T) {
	c := validConfig()
	c.KSPType = "multigrid"
	assert.Error(t, c.Validate())
}

func TestTargetSpacingPadsTrailingAxis(t *testing.T) {
	c := validConfig()
	c.NodeSpacing = []int{8, 8}
	assert.Equal(t, [3]int{8, 8, 1}, c.TargetSpacing())
}

func TestNDimMatchesNodeSpacingLength(t *testing.T) {
	c := validConfig()
	assert.Equal(t, 2, c.NDim())
}

func TestDriverOptionsCarriesKSPSettings(t *testing.T) {
	c := validConfig()
	c.KSPType = "gmres"
	opts := c.DriverOptions()
	require.Equal(t, 2, opts.NDim)
	assert.Equal(t, [3]int{4, 4, 1}, opts.TargetSpacing)
	assert.Equal(t, linalg.KSPGMRES, opts.KSP.Type)
}

func TestYAMLRendersThroughGhodssYAML(t *testing.T) {
	c := validConfig()
	out, err := c.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "fixed: fixed.png")
	assert.Contains(t, out, "nodespacing:")
}
