// Package sat implements the SAT engine (spec §4.4): two-watched-literal
// CDCL propagation over the literal language of the domain store, with a
// learnt-clause database managed by clause activity. It is adapted from the
// teacher's two clause implementations (internal/sat/clauses.go and
// sat/clauses.go in rhartert/yass), keeping the LBD variant's clause
// representation per SPEC_FULL.md §12 and folding in the simpler variant's
// tautology/duplicate-removal pass. The Clause type carries an lbd field,
// but no code path computes it; ReduceDB culls by activity alone.
package sat

import (
	"strings"

	"github.com/lcgkit/solver/internal/kernel/store"
)

// ClauseID identifies a clause for the lifetime of the engine.
type ClauseID uint32

type statusMask uint8

const (
	statusDeleted statusMask = 1 << iota
	statusLearnt
	statusProtected
)

// Clause is a propositional disjunction of store literals (spec §3.1).
type Clause struct {
	id       ClauseID
	literals []store.Literal
	activity float64
	lbd      uint32
	status   statusMask

	// prevPos speeds up the search for a new literal to watch by resuming
	// from the position at which the previous watched literal was found,
	// mirroring the teacher's sat/clauses.go.
	prevPos int
}

func (c *Clause) IsLearnt() bool    { return c.status&statusLearnt != 0 }
func (c *Clause) IsDeleted() bool   { return c.status&statusDeleted != 0 }
func (c *Clause) IsProtected() bool { return c.status&statusProtected != 0 }
func (c *Clause) SetProtected()     { c.status |= statusProtected }
func (c *Clause) ClearProtected()   { c.status &^= statusProtected }
func (c *Clause) Activity() float64 { return c.activity }
func (c *Clause) LBD() uint32       { return c.lbd }
func (c *Clause) Literals() []store.Literal {
	return c.literals
}

func (c *Clause) String() string {
	if len(c.literals) == 0 {
		return "Clause[]"
	}
	var sb strings.Builder
	sb.WriteString("Clause[")
	sb.WriteString(c.literals[0].String())
	for _, l := range c.literals[1:] {
		sb.WriteByte(' ')
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// buildClause validates and (for non-learnt clauses) simplifies tmpLiterals
// in place, following the teacher's NewClause: duplicate literals are
// dropped, a clause containing both a literal and its negation is a
// tautology (a no-op), and literals already falsified at the current state
// are discarded. It reports whether the clause is usable (size > 0) and, if
// so, the literal slice to use.
//
// Learnt clauses skip this simplification: they are produced by conflict
// analysis and are already minimal and consistent with the current state by
// construction.
func buildClause(s *store.Store, tmpLiterals []store.Literal, learnt bool) (lits []store.Literal, isTautology bool) {
	if learnt {
		return tmpLiterals, false
	}

	size := len(tmpLiterals)
	seen := make(map[store.Literal]struct{}, size)

	for i := size - 1; i >= 0; i-- {
		if _, ok := seen[tmpLiterals[i].Negate()]; ok {
			return nil, true // v and !v both present: always true
		}
		if _, ok := seen[tmpLiterals[i]]; ok {
			size--
			tmpLiterals[i], tmpLiterals[size] = tmpLiterals[size], tmpLiterals[i]
			continue
		}
		seen[tmpLiterals[i]] = struct{}{}

		switch s.Value(tmpLiterals[i]) {
		case store.True:
			return nil, true
		case store.False:
			size--
			tmpLiterals[i], tmpLiterals[size] = tmpLiterals[size], tmpLiterals[i]
		}
	}

	return tmpLiterals[:size], false
}
