package stn

import "fmt"

// Level selects how much inference the difference-logic theory performs
// beyond the bare minimum of tracking declared edges (spec §4.5, §6
// "STN theory-propagation level"). Stronger levels cost more per
// propagation call in exchange for tighter domains and fewer search nodes.
type Level uint8

const (
	// LevelNone disables the theory: edges are recorded but never relax any
	// bound. Only useful to isolate the SAT engine's behaviour for
	// debugging, or when an embedding application wants to implement its own
	// temporal reasoning downstream of the clause layer.
	LevelNone Level = iota
	// LevelBound activates edges once their enabler and both endpoint
	// presences hold, keeping the active network up to date, but tightens no
	// bound: Propagate returns before any relaxation at this level.
	LevelBound
	// LevelEdge runs bound relaxation to a full fixpoint across every active
	// edge (the incremental SSSP of spec §4.5), but never infers that a
	// pending (not yet enabled) edge must be disabled.
	LevelEdge
	// LevelFull is LevelEdge plus: after every fixpoint, pending edges whose
	// activation would immediately violate the network are disabled by
	// asserting the negation of their enabler.
	LevelFull
)

// DefaultLevel is Full (spec §9, resolving the ambiguity between two
// observed "default" propagation levels in favour of the stronger one).
const DefaultLevel = LevelFull

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelBound:
		return "bound"
	case LevelEdge:
		return "edge"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("stn.Level(%d)", uint8(l))
	}
}

// ParseLevel parses the environment-parameter spelling of a propagation
// level (spec §6, "none | bound | edge | full").
func ParseLevel(s string) (Level, error) {
	switch s {
	case "none":
		return LevelNone, nil
	case "bound":
		return LevelBound, nil
	case "edge":
		return LevelEdge, nil
	case "full":
		return LevelFull, nil
	default:
		return 0, fmt.Errorf("stn: unknown propagation level %q", s)
	}
}
