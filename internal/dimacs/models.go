package dimacs

import (
	"fmt"
	"os"

	upstream "github.com/rhartert/dimacs"
)

// ParseModels reads a competition-format model listing (one satisfying
// assignment per line, space-separated signed literals terminated by 0) as
// produced alongside a DIMACS instance, used by regression tests that check
// a solver's model against a precomputed set rather than re-verifying it.
// Grounded on the teacher's parsers.ReadModels, also built on
// github.com/rhartert/dimacs's ReadBuilder: a model listing has no problem
// line, so modelBuilder.Problem rejects one if present.
func ParseModels(filename string) ([][]bool, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	b := &modelBuilder{}
	if err := upstream.ReadBuilder(file, b); err != nil {
		return nil, err
	}
	return b.models, nil
}

type modelBuilder struct {
	models [][]bool
}

func (b *modelBuilder) Problem(problem string, nVars int, nClauses int) error {
	return fmt.Errorf("model files should not have problem lines")
}

func (b *modelBuilder) Comment(_ string) error {
	return nil // ignore comments
}

func (b *modelBuilder) Clause(tmpClause []int) error {
	model := make([]bool, len(tmpClause))
	for i, l := range tmpClause {
		model[i] = l > 0
	}
	b.models = append(b.models, model)
	return nil
}
