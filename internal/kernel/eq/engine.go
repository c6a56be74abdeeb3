// Package eq implements the equality theory (spec §4.6): a half-reified
// directed (dis)equality graph over solver variables and integer constants,
// propagating by fusing Eq edges into equivalence classes and tracking Neq
// edges as a same/different parity within those classes, generalized from
// the union-find-over-a-graph-of-propagators design of the teacher's
// alternate equality reasoner (original_source
// solver/src/reasoners/eq_alt/eq_impl.rs).
package eq

import (
	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

// Relation is the kind of constraint an edge enforces between its two
// endpoints once active.
type Relation uint8

const (
	// Eq enforces that the two endpoints take the same value.
	Eq Relation = iota
	// Neq enforces that the two endpoints take different values.
	Neq
)

func (r Relation) parity() int8 {
	if r == Neq {
		return 1
	}
	return 0
}

// EdgeID identifies a declared equality or disequality edge.
type EdgeID uint32

// Edge is a half-reified (dis)equality constraint between two nodes,
// enabled when its literal and both endpoints' scopes are entailed (spec
// §4.6, "Enabled edges are those whose literal and scope are entailed").
type Edge struct {
	id       EdgeID
	a, b     Node
	relation Relation
	literal  store.Literal
	aScope   store.Literal
	bScope   store.Literal
	active   bool
}

// nodeID is the dense internal index assigned to a Node on first use.
type nodeID int32

// classEntry is one node's slot in the weighted union-find over nodes:
// parityToParent is the XOR-distance from this node to its parent (0 same
// value, 1 different value), and causeEdge is the edge whose activation
// created this parent link (meaningless at a root, where parent == self).
type classEntry struct {
	parent         nodeID
	parityToParent int8
	rank           int32
	causeEdge      EdgeID
}

// inferenceRecord is the append-only log backing Cause.Payload values: each
// bound tightening an edge activation or class merge causes is recorded
// here once, and the payload handed to store.Set is simply its index.
type inferenceRecord struct {
	member  nodeID
	witness nodeID
	kind    Relation
}

// unionRecord is the undo information for one union() call, replayed in
// reverse by RestoreLast the same way the STN theory replays its own
// private activation log.
type unionRecord struct {
	ra, rb            nodeID
	oldRBEntry        classEntry
	oldRARank         int32
	raMembersPriorLen int
	rbMembers         []nodeID
}

// Engine is the equality/disequality theory reasoner.
type Engine struct {
	edges     []*Edge
	byLiteral map[store.Literal][]EdgeID
	byScope   map[store.Literal][]EdgeID
	pending   map[EdgeID]struct{}

	nodeIndex map[Node]nodeID
	nodeKind  []Node
	classes   []classEntry
	members   map[nodeID][]nodeID

	inferences []inferenceRecord

	activations          []activationRecord
	activationCheckpoint []int
	cursor               *trail.Cursor
	savedLevels          int
}

// activationRecord is the undo information for one successful activate()
// call: the edge activated, and the union it performed, if any (an edge
// whose endpoints already shared a root with matching parity activates
// without touching the union-find structure).
type activationRecord struct {
	edge     EdgeID
	hadUnion bool
	union    unionRecord
}

var _ reasoner.Reasoner = (*Engine)(nil)

// New returns a fresh equality theory with no declared edges.
func New() *Engine {
	return &Engine{
		byLiteral: make(map[store.Literal][]EdgeID),
		byScope:   make(map[store.Literal][]EdgeID),
		pending:   make(map[EdgeID]struct{}),
		nodeIndex: make(map[Node]nodeID),
		members:   make(map[nodeID][]nodeID),
		cursor:    trail.NewCursor(),
	}
}

// Identity reports the theory's fixed writer identity (spec §4.6).
func (e *Engine) Identity() store.WriterID { return store.WriterEq }

// NumEdges reports how many edges have been declared.
func (e *Engine) NumEdges() int { return len(e.edges) }

// AddEdge declares a half-reified (dis)equality between a and b, enabled
// once literal and both endpoints' scopes are entailed. Variable endpoints
// take their scope from the variable's own presence literal; constant
// endpoints have no presence and are scoped by s.AlwaysTrue().
func (e *Engine) AddEdge(s *store.Store, a, b Node, relation Relation, literal store.Literal) EdgeID {
	id := EdgeID(len(e.edges))
	ed := &Edge{
		id:       id,
		a:        a,
		b:        b,
		relation: relation,
		literal:  literal,
		aScope:   e.scopeOf(s, a),
		bScope:   e.scopeOf(s, b),
	}
	e.edges = append(e.edges, ed)
	e.pending[id] = struct{}{}
	e.byLiteral[literal] = append(e.byLiteral[literal], id)
	e.byScope[ed.aScope] = append(e.byScope[ed.aScope], id)
	e.byScope[ed.bScope] = append(e.byScope[ed.bScope], id)
	return id
}

func (e *Engine) scopeOf(s *store.Store, n Node) store.Literal {
	if n.isConst {
		return s.AlwaysTrue()
	}
	return s.Presence(n.v)
}

func (e *Engine) registerNode(n Node) nodeID {
	if id, ok := e.nodeIndex[n]; ok {
		return id
	}
	id := nodeID(len(e.classes))
	e.classes = append(e.classes, classEntry{parent: id, parityToParent: 0, rank: 0})
	e.nodeKind = append(e.nodeKind, n)
	e.nodeIndex[n] = id
	e.members[id] = []nodeID{id}
	return id
}

func (e *Engine) find(n nodeID) (root nodeID, parity int8) {
	for e.classes[n].parent != n {
		parity ^= e.classes[n].parityToParent
		n = e.classes[n].parent
	}
	return n, parity
}

func (e *Engine) ready(s *store.Store, ed *Edge) bool {
	return s.Entails(ed.literal) && s.Entails(ed.aScope) && s.Entails(ed.bScope)
}

// Propagate drives the theory to a fixpoint: newly enabled edges are fused
// into the equality graph, every class is re-checked against the constants
// it contains, and (once enough structure exists) pending edges that would
// immediately close an odd Neq cycle have their enabler inferred false.
func (e *Engine) Propagate(s *store.Store) (*reasoner.Conflict, error) {
	if conflict, err := e.activateAllReady(s); conflict != nil || err != nil {
		return conflict, err
	}
	for {
		idx, ok := trail.Next(e.cursor, s.Trail())
		if !ok {
			break
		}
		ev := s.Trail().At(idx)
		if conflict, err := e.activateByLiteral(s, ev.Lit); conflict != nil || err != nil {
			return conflict, err
		}
	}
	return e.disableInfeasiblePending(s)
}

func (e *Engine) activateAllReady(s *store.Store) (*reasoner.Conflict, error) {
	candidates := make([]EdgeID, 0, len(e.pending))
	for id := range e.pending {
		candidates = append(candidates, id)
	}
	for _, id := range candidates {
		if _, stillPending := e.pending[id]; !stillPending {
			continue
		}
		ed := e.edges[id]
		if !e.ready(s, ed) {
			continue
		}
		if conflict, err := e.activate(s, ed); conflict != nil || err != nil {
			return conflict, err
		}
	}
	return nil, nil
}

func (e *Engine) activateByLiteral(s *store.Store, lit store.Literal) (*reasoner.Conflict, error) {
	for _, id := range e.byLiteral[lit] {
		if _, stillPending := e.pending[id]; !stillPending {
			continue
		}
		ed := e.edges[id]
		if e.ready(s, ed) {
			if conflict, err := e.activate(s, ed); conflict != nil || err != nil {
				return conflict, err
			}
		}
	}
	for _, id := range e.byScope[lit] {
		if _, stillPending := e.pending[id]; !stillPending {
			continue
		}
		ed := e.edges[id]
		if e.ready(s, ed) {
			if conflict, err := e.activate(s, ed); conflict != nil || err != nil {
				return conflict, err
			}
		}
	}
	return nil, nil
}

func (e *Engine) activate(s *store.Store, ed *Edge) (*reasoner.Conflict, error) {
	delete(e.pending, ed.id)
	ed.active = true

	na := e.registerNode(ed.a)
	nb := e.registerNode(ed.b)
	parity := ed.relation.parity()

	ra, pa := e.find(na)
	rb, pb := e.find(nb)
	if ra == rb {
		e.activations = append(e.activations, activationRecord{edge: ed.id})
		if pa^pb != parity {
			return e.buildConflict(ed, na, nb), nil
		}
		return nil, nil
	}

	root, rec := e.union(na, nb, ed.id, parity)
	e.activations = append(e.activations, activationRecord{edge: ed.id, hadUnion: true, union: rec})
	return e.propagateClass(s, root)
}

// union merges the classes of a and b so that their XOR-distance equals
// parity, returning the surviving root and the undo record for this merge.
// Callers must already know a and b are in different classes.
func (e *Engine) union(a, b nodeID, cause EdgeID, parity int8) (nodeID, unionRecord) {
	ra, pa := e.find(a)
	rb, pb := e.find(b)

	if e.classes[ra].rank < e.classes[rb].rank {
		ra, rb = rb, ra
		pa, pb = pb, pa
	}
	childParity := pa ^ parity ^ pb

	rec := unionRecord{
		ra:                ra,
		rb:                rb,
		oldRBEntry:        e.classes[rb],
		oldRARank:         e.classes[ra].rank,
		raMembersPriorLen: len(e.members[ra]),
		rbMembers:         append([]nodeID(nil), e.members[rb]...),
	}

	e.classes[rb] = classEntry{parent: ra, parityToParent: childParity, rank: e.classes[rb].rank, causeEdge: cause}
	if e.classes[ra].rank == rec.oldRBEntry.rank {
		e.classes[ra].rank++
	}
	e.members[ra] = append(e.members[ra], e.members[rb]...)
	delete(e.members, rb)
	return ra, rec
}

func (e *Engine) undoUnion(rec unionRecord) {
	e.classes[rec.rb] = rec.oldRBEntry
	e.classes[rec.ra].rank = rec.oldRARank
	e.members[rec.ra] = e.members[rec.ra][:rec.raMembersPriorLen]
	if len(rec.rbMembers) > 0 {
		e.members[rec.rb] = rec.rbMembers
	} else {
		delete(e.members, rec.rb)
	}
}

// propagateClass scans every constant in root's class against every
// variable member, tightening variables known equal to a constant down to
// it and excluding a constant from a variable known unequal to it whenever
// that constant sits at the variable's current bound (spec §4.6).
func (e *Engine) propagateClass(s *store.Store, root nodeID) (*reasoner.Conflict, error) {
	var consts []struct {
		id     nodeID
		parity int8
		value  int64
	}
	for _, m := range e.members[root] {
		if nd := e.nodeKind[m]; nd.isConst {
			_, par := e.find(m)
			consts = append(consts, struct {
				id     nodeID
				parity int8
				value  int64
			}{m, par, nd.c})
		}
	}
	if len(consts) == 0 {
		return nil, nil
	}
	for _, m := range e.members[root] {
		nd := e.nodeKind[m]
		if nd.isConst {
			continue
		}
		_, par := e.find(m)
		for _, c := range consts {
			var conflict *reasoner.Conflict
			var err error
			if par == c.parity {
				conflict, err = e.tightenEq(s, m, c.id, c.value)
			} else {
				conflict, err = e.tightenNeq(s, m, c.id, c.value)
			}
			if conflict != nil || err != nil {
				return conflict, err
			}
		}
	}
	return nil, nil
}

func (e *Engine) recordInference(member, witness nodeID, kind Relation) uint32 {
	id := uint32(len(e.inferences))
	e.inferences = append(e.inferences, inferenceRecord{member: member, witness: witness, kind: kind})
	return id
}

func (e *Engine) tightenEq(s *store.Store, m, witness nodeID, value int64) (*reasoner.Conflict, error) {
	v := e.nodeKind[m].v
	payload := e.recordInference(m, witness, Eq)
	cause := store.InferenceCause(store.WriterEq, payload)
	if _, err := s.Set(store.LELit(v, value), cause); err != nil {
		return e.wipeoutConflict(err, m, witness)
	}
	if _, err := s.Set(store.GELit(v, value), cause); err != nil {
		return e.wipeoutConflict(err, m, witness)
	}
	return nil, nil
}

func (e *Engine) tightenNeq(s *store.Store, m, witness nodeID, value int64) (*reasoner.Conflict, error) {
	v := e.nodeKind[m].v
	lb, ub := s.Bounds(v)
	payload := e.recordInference(m, witness, Neq)
	cause := store.InferenceCause(store.WriterEq, payload)
	switch {
	case ub == value:
		if _, err := s.Set(store.LELit(v, value-1), cause); err != nil {
			return e.wipeoutConflict(err, m, witness)
		}
	case lb == value:
		if _, err := s.Set(store.GELit(v, value+1), cause); err != nil {
			return e.wipeoutConflict(err, m, witness)
		}
	}
	return nil, nil
}

func (e *Engine) wipeoutConflict(err error, m, witness nodeID) (*reasoner.Conflict, error) {
	ede, ok := err.(*store.EmptyDomainError)
	if !ok {
		return nil, err
	}
	lits := append([]store.Literal{}, ede.Conflict()...)
	lits = append(lits, e.pathLiterals(m, witness)...)
	return &reasoner.Conflict{Literals: lits}, nil
}

func (e *Engine) buildConflict(ed *Edge, a, b nodeID) *reasoner.Conflict {
	lits := e.pathLiterals(a, b)
	lits = append(lits, ed.literal)
	if ed.aScope != ed.literal {
		lits = append(lits, ed.aScope)
	}
	if ed.bScope != ed.literal {
		lits = append(lits, ed.bScope)
	}
	return &reasoner.Conflict{Literals: lits}
}

func (e *Engine) walkEdges(n nodeID) []EdgeID {
	var edges []EdgeID
	for e.classes[n].parent != n {
		edges = append(edges, e.classes[n].causeEdge)
		n = e.classes[n].parent
	}
	return edges
}

func (e *Engine) pathLiterals(a, b nodeID) []store.Literal {
	ids := append(e.walkEdges(a), e.walkEdges(b)...)
	seen := make(map[EdgeID]bool, len(ids))
	var lits []store.Literal
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ed := e.edges[id]
		lits = append(lits, ed.literal)
		if ed.aScope != ed.literal {
			lits = append(lits, ed.aScope)
		}
		if ed.bScope != ed.literal {
			lits = append(lits, ed.bScope)
		}
	}
	return lits
}

// disableInfeasiblePending infers the enabler of a still-pending edge false
// when its endpoints' scopes are entailed and activating it would close an
// odd Neq cycle (spec §4.6, "the enabler of the edge is inferred false").
func (e *Engine) disableInfeasiblePending(s *store.Store) (*reasoner.Conflict, error) {
	for id := range e.pending {
		ed := e.edges[id]
		if s.Value(ed.literal) != store.Unknown {
			continue
		}
		if !s.Entails(ed.aScope) || !s.Entails(ed.bScope) {
			continue
		}
		na, haveA := e.nodeIndex[ed.a]
		nb, haveB := e.nodeIndex[ed.b]
		if !haveA || !haveB {
			continue
		}
		ra, pa := e.find(na)
		rb, pb := e.find(nb)
		if ra != rb {
			continue
		}
		if pa^pb == ed.relation.parity() {
			continue
		}
		payload := e.recordInference(na, nb, ed.relation)
		cause := store.InferenceCause(store.WriterEq, payload)
		if _, err := s.Set(ed.literal.Negate(), cause); err != nil {
			return e.wipeoutConflict(err, na, nb)
		}
	}
	return nil, nil
}

// Explain expands one prior inference of this theory into the literals
// that entailed it: the equality/disequality path between the tightened
// variable and the constant that justified the tightening (spec §4.6).
func (e *Engine) Explain(lit store.Literal, payload uint32, snap *store.Snapshot, exp *store.Explanation) {
	rec := e.inferences[payload]
	for _, l := range e.pathLiterals(rec.member, rec.witness) {
		exp.Add(l)
	}
}

// SaveState records a checkpoint of the activation/union-find state for
// later restore.
func (e *Engine) SaveState() int {
	e.activationCheckpoint = append(e.activationCheckpoint, len(e.activations))
	e.savedLevels++
	return e.savedLevels
}

// RestoreLast undoes every edge activation (and the union it performed, if
// any) since the last SaveState, mirroring the STN theory's own private
// undo log: activation is a derived side effect of literal entailment, not
// a domain-store mutation, so the shared trail cannot unwind it for us.
func (e *Engine) RestoreLast() {
	if len(e.activationCheckpoint) == 0 {
		return
	}
	mark := e.activationCheckpoint[len(e.activationCheckpoint)-1]
	e.activationCheckpoint = e.activationCheckpoint[:len(e.activationCheckpoint)-1]
	for len(e.activations) > mark {
		rec := e.activations[len(e.activations)-1]
		e.activations = e.activations[:len(e.activations)-1]
		if rec.hadUnion {
			e.undoUnion(rec.union)
		}
		ed := e.edges[rec.edge]
		ed.active = false
		e.pending[rec.edge] = struct{}{}
	}
	e.savedLevels--
}

// NumSaved reports how many checkpoints are currently outstanding.
func (e *Engine) NumSaved() int { return e.savedLevels }
