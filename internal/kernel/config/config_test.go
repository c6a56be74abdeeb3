package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcgkit/solver/internal/kernel/stn"
)

func TestLoadDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(fs)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, cfg)
	assert.Equal(t, stn.DefaultLevel, cfg.STNLevel)
}

func TestLoadFlagOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--" + keySymmetryBreaking, "simple",
		"--" + keySTNLevel, "bound",
		"--" + keyRelaxedCoupling, "true",
		"--" + keyBorrowResource, "true",
		"--" + keyAssignmentMode, string(WithoutEndVar),
	}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, SymmetrySimple, cfg.SymmetryBreaking)
	assert.Equal(t, stn.LevelBound, cfg.STNLevel)
	assert.True(t, cfg.RelaxedTaskMethodCoupling)
	assert.True(t, cfg.BorrowResourceConstraint)
	assert.Equal(t, WithoutEndVar, cfg.AssignmentTimepointMode)
}

func TestLoadInvalidSTNLevel(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--" + keySTNLevel, "bogus"}))

	_, err := Load(fs)
	require.Error(t, err)
}
