// Package integration exercises the kernel end to end the way the
// teacher's root yass_test.go does: load a DIMACS instance, solve it
// repeatedly while excluding each model found, and compare the resulting
// set against a set of pre-computed reference models. Retargeted from the
// teacher's own sat.Solver/parsers pair onto the new store/sat/search/
// dimacs stack, since the original fixtures never shipped with the
// teacher's tree to carry forward verbatim.
package integration

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/lcgkit/solver/internal/dimacs"
	"github.com/lcgkit/solver/internal/kernel/sat"
	"github.com/lcgkit/solver/internal/kernel/search"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

var testdataDir = "testdata"

type testCase struct {
	instanceName string
	instanceFile string
	modelsFile   string
}

func listTestCases(dir string) ([]testCase, error) {
	var testCases []testCase
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".cnf") {
			return nil
		}
		testCases = append(testCases, testCase{
			instanceName: d.Name(),
			instanceFile: path,
			modelsFile:   path + ".models",
		})
		return nil
	})
	return testCases, err
}

func toString(model []bool) string {
	s := make([]byte, 0, len(model))
	for _, b := range model {
		if b {
			s = append(s, 1)
		} else {
			s = append(s, 0)
		}
	}
	return string(s)
}

func toSet(models [][]bool) map[string]struct{} {
	set := map[string]struct{}{}
	for _, m := range models {
		set[toString(m)] = struct{}{}
	}
	return set
}

// cnfLoader adapts dimacs.Load onto the sat engine plus store directly,
// mirroring the teacher's NewDefaultSolver()-then-LoadDIMACS shape.
type cnfLoader struct {
	s    *store.Store
	se   *sat.Engine
	vars []store.VarID
}

func (c *cnfLoader) AddVariable() store.VarID {
	v := c.s.NewVariable(store.KindBool, 0, 1, "")
	c.vars = append(c.vars, v)
	return v
}

func (c *cnfLoader) AddClause(lits []store.Literal) error {
	_, err := c.se.AddClause(c.s, lits)
	return err
}

// solveAll repeatedly solves, recording the model and excluding it, until
// the instance (with all previously-found models excluded) is
// unsatisfiable, mirroring the teacher's own solveAll/"forbid the last
// model" loop.
func solveAll(t *testing.T, s *store.Store, se *sat.Engine, order *search.VarOrder, vars []store.VarID) [][]bool {
	t.Helper()

	d := search.New(s, trailOf(s), se, nil, order, search.DefaultOptions, zerolog.Nop())

	var models [][]bool
	for {
		status, err := d.Solve()
		if err != nil {
			t.Fatalf("Solve(): %s", err)
		}
		if status != search.StatusSatisfiable {
			return models
		}

		model := make([]bool, len(vars))
		exclude := make([]store.Literal, len(vars))
		for i, v := range vars {
			val := s.Value(store.PositiveLiteral(v)) == store.True
			model[i] = val
			if val {
				exclude[i] = store.NegativeLiteral(v)
			} else {
				exclude[i] = store.PositiveLiteral(v)
			}
		}
		models = append(models, model)

		d.RestartToRoot()
		if _, err := se.AddClause(s, exclude); err != nil {
			// The exclusion clause itself conflicts at the root: every
			// model has been enumerated.
			return models
		}
	}
}

func trailOf(s *store.Store) *trail.Trail[store.Event] { return s.Trail() }

func TestSolveAll(t *testing.T) {
	testCases, err := listTestCases(testdataDir)
	if err != nil {
		t.Fatalf("Error parsing test cases: %s", err)
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.instanceName, func(t *testing.T) {
			t.Parallel()

			want, err := dimacs.ParseModels(tc.modelsFile)
			if err != nil {
				t.Fatalf("Model parsing error: %s", err)
			}

			tr := trail.New[store.Event]()
			s := store.New(tr)
			se := sat.New()
			loader := &cnfLoader{s: s, se: se}
			if err := dimacs.Load(tc.instanceFile, false, loader); err != nil {
				t.Fatalf("Instance parsing error: %s", err)
			}

			order := search.NewVarOrder(0.95, true)
			for _, v := range loader.vars {
				order.AddVar(v, 0, store.Unknown)
			}

			got := solveAll(t, s, se, order, loader.vars)

			if len(got) != len(want) {
				t.Errorf("Incorrect number of models: got %d, want %d", len(got), len(want))
			}
			if diff := cmp.Diff(toSet(want), toSet(got)); diff != "" {
				t.Errorf("Model mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
