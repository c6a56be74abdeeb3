package eq

import (
	"fmt"

	"github.com/lcgkit/solver/internal/kernel/store"
)

// Node is an endpoint of an equality edge: either a solver variable or an
// integer constant (spec §4.6, "a registered set of variables plus integer
// constants as constant nodes"). Two Node values compare equal iff they
// denote the same variable or the same constant, so Node can key a map
// directly.
type Node struct {
	isConst bool
	v       store.VarID
	c       int64
}

// VarNode wraps a solver variable as an equality-graph node.
func VarNode(v store.VarID) Node { return Node{v: v} }

// ConstNode wraps an integer constant as an equality-graph node.
func ConstNode(c int64) Node { return Node{isConst: true, c: c} }

func (n Node) String() string {
	if n.isConst {
		return fmt.Sprintf("#%d", n.c)
	}
	return fmt.Sprintf("v%d", n.v)
}
