// Package config implements the small registry of run-time knobs named in
// spec.md §6 ("Environment parameters"), read once at startup, mirroring
// the original Rust implementation's EnvParam statics
// (original_source/solver/src/solver.rs's LOG_DECISIONS) but bound through
// github.com/spf13/viper instead of a bespoke env-var reader, so the same
// knobs are settable by environment variable or CLI flag without the
// kernel caring which.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lcgkit/solver/internal/kernel/stn"
)

// SymmetryBreaking selects the symmetry-breaking scheme applied during
// problem instantiation.
type SymmetryBreaking string

const (
	SymmetryNone   SymmetryBreaking = "none"
	SymmetrySimple SymmetryBreaking = "simple"
)

// AssignmentTimepointMode resolves spec §9(c)'s open question on the
// resource-assignment encoding: whether a borrowed resource's release is
// tracked through an explicit end-of-assignment variable or inferred from
// the next use, per SPEC_FULL.md §12.
type AssignmentTimepointMode string

const (
	// WithEndVar gives every resource assignment its own end timepoint
	// variable, constrained to fall between the assignment's start and the
	// next assignment's start; simplest to reason about, costs one extra
	// variable per assignment.
	WithEndVar AssignmentTimepointMode = "with-end-var"
	// WithoutEndVar infers the release point from the start of whichever
	// assignment follows, saving a variable per assignment at the cost of a
	// more intricate chain of STN edges between consecutive assignments.
	WithoutEndVar AssignmentTimepointMode = "without-end-var"
)

// Config is the environment-parameter registry of spec.md §6, read once at
// startup and handed to problem.NewBuilder. Within this module only STNLevel
// is acted on (it selects the STN engine's propagation level); the other
// fields are parsed and validated, and no component reads them. Zero value
// is not valid; use Load or Default.
type Config struct {
	// SymmetryBreaking selects how problem instantiation breaks
	// interchangeable-object symmetries.
	SymmetryBreaking SymmetryBreaking
	// STNLevel selects how much inference the difference-logic theory
	// performs (spec §4.5, §12).
	STNLevel stn.Level
	// RelaxedTaskMethodCoupling, when true, loosens the temporal coupling
	// between a task and the method refining it (allows the method's span
	// to be a strict subset rather than requiring endpoint equality).
	RelaxedTaskMethodCoupling bool
	// BorrowResourceConstraint enables the borrow-pattern resource
	// constraint (a resource usage that must be returned before the next
	// borrower can proceed, as opposed to plain mutual exclusion).
	BorrowResourceConstraint bool
	// AssignmentTimepointMode resolves §9(c); see the type doc.
	AssignmentTimepointMode AssignmentTimepointMode
}

// Default returns the registry's default values: no symmetry breaking,
// full STN propagation (stn.DefaultLevel), strict task/method coupling,
// borrow-pattern resources off, and the WithEndVar assignment encoding
// (the simpler of the two resolved variants).
func Default() Config {
	return Config{
		SymmetryBreaking:          SymmetryNone,
		STNLevel:                  stn.DefaultLevel,
		RelaxedTaskMethodCoupling: false,
		BorrowResourceConstraint:  false,
		AssignmentTimepointMode:   WithEndVar,
	}
}

const envPrefix = "LCGC"

// keys are the viper/flag key names shared between BindFlags and Load, kept
// in one place so the two can't drift apart.
const (
	keySymmetryBreaking = "symmetry-breaking"
	keySTNLevel         = "stn-level"
	keyRelaxedCoupling  = "relaxed-task-method-coupling"
	keyBorrowResource   = "borrow-resource-constraint"
	keyAssignmentMode   = "assignment-timepoint-mode"
)

// BindFlags registers the environment parameters as pflag flags on fs,
// defaulted from Default(), for cmd/lcgc to expose alongside its own
// flags.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(keySymmetryBreaking, string(d.SymmetryBreaking), "symmetry-breaking scheme (none|simple)")
	fs.String(keySTNLevel, d.STNLevel.String(), "STN theory-propagation level (none|bound|edge|full)")
	fs.Bool(keyRelaxedCoupling, d.RelaxedTaskMethodCoupling, "use relaxed task/method temporal coupling")
	fs.Bool(keyBorrowResource, d.BorrowResourceConstraint, "enable the borrow-pattern resource constraint")
	fs.String(keyAssignmentMode, string(d.AssignmentTimepointMode), "resource-assignment timepoint encoding (with-end-var|without-end-var)")
}

// Load reads the registry from fs (already parsed) and the process
// environment (prefixed LCGC_, e.g. LCGC_STN_LEVEL), with flags taking
// precedence over environment over the Default() baseline.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	d := Default()
	v.SetDefault(keySymmetryBreaking, string(d.SymmetryBreaking))
	v.SetDefault(keySTNLevel, d.STNLevel.String())
	v.SetDefault(keyRelaxedCoupling, d.RelaxedTaskMethodCoupling)
	v.SetDefault(keyBorrowResource, d.BorrowResourceConstraint)
	v.SetDefault(keyAssignmentMode, string(d.AssignmentTimepointMode))

	sym := SymmetryBreaking(v.GetString(keySymmetryBreaking))
	if sym != SymmetryNone && sym != SymmetrySimple {
		return Config{}, fmt.Errorf("config: invalid %s %q", keySymmetryBreaking, sym)
	}

	level, err := stn.ParseLevel(v.GetString(keySTNLevel))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", keySTNLevel, err)
	}

	mode := AssignmentTimepointMode(v.GetString(keyAssignmentMode))
	if mode != WithEndVar && mode != WithoutEndVar {
		return Config{}, fmt.Errorf("config: invalid %s %q", keyAssignmentMode, mode)
	}

	return Config{
		SymmetryBreaking:          sym,
		STNLevel:                  level,
		RelaxedTaskMethodCoupling: v.GetBool(keyRelaxedCoupling),
		BorrowResourceConstraint:  v.GetBool(keyBorrowResource),
		AssignmentTimepointMode:   mode,
	}, nil
}
