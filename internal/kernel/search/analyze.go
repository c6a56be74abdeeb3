package search

import (
	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

// analyze performs 1-UIP conflict analysis over the shared trail, generalized
// from the teacher's internal/sat/solver.go Solver.analyze to walk causes
// written by any registered reasoner rather than only clauses: a cause's
// Writer selects which reasoner's Explain expands it (spec §4.3, §7).
//
// It returns the learnt clause (element 0 is the asserting literal, to be set
// true immediately after backtracking) and the level to backtrack to.
func (d *Driver) analyze(conflict *reasoner.Conflict) ([]store.Literal, trail.Level) {
	seen := make(map[store.VarID]bool)
	learnt := []store.Literal{{}}
	backtrackLevel := trail.Level(0)
	nImplicationPoints := 0
	currentLevel := d.trail.CurrentLevel()

	process := func(lits []store.Literal) {
		for _, lit := range lits {
			v := lit.Var
			if seen[v] {
				continue
			}
			seen[v] = true
			lvl := d.store.EventLevel(lit)
			if lvl == currentLevel {
				nImplicationPoints++
				continue
			}
			learnt = append(learnt, lit.Negate())
			if lvl > backtrackLevel {
				backtrackLevel = lvl
			}
		}
	}

	process(conflict.Literals)

	idx := d.trail.Len() - 1
	var uipLit store.Literal
	for {
		var cause store.Cause
		for {
			ev := d.trail.At(idx)
			idx--
			if seen[ev.Lit.Var] {
				uipLit = ev.Lit
				cause = ev.Cause
				break
			}
		}

		nImplicationPoints--
		if nImplicationPoints <= 0 {
			break
		}

		// A decision literal has no premises to expand; reaching one here
		// with implication points still outstanding would mean the trail ran
		// out before a unique implication point was found, which 1-UIP
		// analysis guarantees cannot happen.
		if cause.Kind == store.CauseInference {
			who := d.reasoners[cause.Writer]
			process(d.store.ImplyingLiterals(uipLit, cause, who))
		}
	}

	learnt[0] = uipLit.Negate()
	return learnt, backtrackLevel
}
