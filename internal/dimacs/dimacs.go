// Package dimacs loads the DIMACS CNF exchange format into a
// caller-supplied variable/clause sink, adapted from the teacher's
// parsers/parsers.go to target the shared kernel's store.Literal
// representation instead of a SAT-only literal type, so the same loader
// can feed a problem that also has STN or equality constraints declared
// around the CNF core (spec §6). The actual line-by-line parsing is done
// by github.com/rhartert/dimacs's ReadBuilder, the same library the
// teacher's own parsers.go called; this package only adapts its
// int-literal callback onto store.VarID/store.Literal.
package dimacs

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	upstream "github.com/rhartert/dimacs"

	"github.com/lcgkit/solver/internal/kernel/store"
)

// Writer receives a parsed DIMACS instance one declaration at a time. AddVariable
// is called once per declared variable, in order, and must return the VarID to
// use for the corresponding 1-based DIMACS index; AddClause is called once per
// clause line.
type Writer interface {
	AddVariable() store.VarID
	AddClause(lits []store.Literal) error
}

func reader(filename string, gzipped bool) (io.ReadCloser, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	rc := io.ReadCloser(file)
	if gzipped {
		rc, err = gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// Load parses filename as DIMACS CNF (optionally gzip-compressed) and drives
// w with the declared variables and clauses.
func Load(filename string, gzipped bool, w Writer) error {
	rc, err := reader(filename, gzipped)
	if err != nil {
		return fmt.Errorf("error reading file %q: %s", filename, err)
	}
	defer rc.Close()

	b := &builder{w: w}
	return upstream.ReadBuilder(rc, b)
}

// builder adapts upstream's int-literal dimacs.Builder callbacks onto a
// Writer's store.VarID/store.Literal calls, mirroring the teacher's own
// parsers.builder.
type builder struct {
	w    Writer
	vars []store.VarID
}

func (b *builder) Problem(problem string, nVars int, nClauses int) error {
	if problem != "cnf" {
		return fmt.Errorf("instance of type %q are not supported", problem)
	}
	b.vars = make([]store.VarID, 0, nVars)
	for i := 0; i < nVars; i++ {
		b.vars = append(b.vars, b.w.AddVariable())
	}
	return nil
}

func (b *builder) Clause(tmpClause []int) error {
	clause := make([]store.Literal, len(tmpClause))
	for i, l := range tmpClause {
		switch {
		case l < 0:
			clause[i] = store.NegativeLiteral(b.vars[-l-1])
		default:
			clause[i] = store.PositiveLiteral(b.vars[l-1])
		}
	}
	return b.w.AddClause(clause)
}

func (b *builder) Comment(_ string) error {
	return nil // ignore comments
}
