// Package stn implements the difference-logic theory (spec §4.5): a network
// of edges `target - source <= weight`, each active only while its enabler
// literal and both endpoints' presence literals are entailed, propagated by
// an incremental relaxation over the shared domain store rather than a
// separate distance array. It is grounded on the original STN module's
// Bellman-Ford-over-active-edges algorithm, generalized from a full
// recomputation on every query to an event-driven incremental one (spec
// §4.5, "incremental single-source shortest-paths").
package stn

import (
	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

// EdgeID identifies a declared STN edge for the lifetime of the engine.
type EdgeID uint32

// Edge is a single difference constraint `target - source <= weight`,
// active only while Enabler and both endpoints' presence literals hold
// (spec §4.5, "effective scope").
type Edge struct {
	id       EdgeID
	source   store.VarID
	target   store.VarID
	weight   int64
	enabler  store.Literal
	srcScope store.Literal // source's presence literal
	dstScope store.Literal // target's presence literal
	active   bool
}

// Engine is the STN reasoner.
type Engine struct {
	level Level

	edges []*Edge

	// byEnabler and byScope index declared edges by every literal that
	// could move them from pending to active, so that a single trail event
	// only needs one map lookup to find the edges it might enable.
	byEnabler map[store.Literal][]EdgeID
	byScope   map[store.Literal][]EdgeID

	// outBySource/outByTarget index *active* edges for the relaxation walk:
	// outBySource[v] is relaxed forward when v's upper bound tightens,
	// outByTarget[v] is relaxed backward when v's lower bound tightens.
	outBySource map[store.VarID][]EdgeID
	outByTarget map[store.VarID][]EdgeID

	pending map[EdgeID]struct{} // edges declared but not yet active

	// activated and activationCheckpoint form a private undo log, mirroring
	// trail.Trail's own checkpoint/restore shape, that lets RestoreLast put
	// back-tracked edges back into pending: activation is a side effect on
	// this engine's own indices, not something the shared domain store's
	// rollback of bound events can undo for it.
	activated            []EdgeID
	activationCheckpoint []int

	cursor *trail.Cursor
	queue  []store.VarID // relaxation worklist, reused across calls

	savedLevels int
}

// New returns an STN engine at the default propagation level.
func New() *Engine { return NewWithLevel(DefaultLevel) }

// NewWithLevel returns an STN engine configured at the given propagation
// level (spec §6).
func NewWithLevel(level Level) *Engine {
	return &Engine{
		level:       level,
		byEnabler:   make(map[store.Literal][]EdgeID),
		byScope:     make(map[store.Literal][]EdgeID),
		outBySource: make(map[store.VarID][]EdgeID),
		outByTarget: make(map[store.VarID][]EdgeID),
		pending:     make(map[EdgeID]struct{}),
		cursor:      trail.NewCursor(),
	}
}

var _ reasoner.Reasoner = (*Engine)(nil)

func (e *Engine) Identity() store.WriterID { return store.WriterSTN }

// Level reports the engine's configured propagation strength.
func (e *Engine) Level() Level { return e.level }

// NumEdges reports how many edges have been declared.
func (e *Engine) NumEdges() int { return len(e.edges) }

// AddEdge declares `target - source <= weight`, active whenever enabler and
// both endpoints are present (spec §6, "declaring STN edges as pairs
// (source_var, target_var, weight, enabler)"). The endpoints' presence
// literals are read from the store; an edge that is always on passes the
// store's always-true literal as its enabler.
func (e *Engine) AddEdge(s *store.Store, source, target store.VarID, weight int64, enabler store.Literal) EdgeID {
	id := EdgeID(len(e.edges))
	ed := &Edge{
		id:       id,
		source:   source,
		target:   target,
		weight:   weight,
		enabler:  enabler,
		srcScope: s.Presence(source),
		dstScope: s.Presence(target),
	}
	e.edges = append(e.edges, ed)
	e.byEnabler[enabler] = append(e.byEnabler[enabler], id)
	e.byScope[ed.srcScope] = append(e.byScope[ed.srcScope], id)
	e.byScope[ed.dstScope] = append(e.byScope[ed.dstScope], id)
	e.pending[id] = struct{}{}
	return id
}

// Propagate drains newly entailed literals from the trail, activates any
// edge whose enabler and scope are now satisfied, relaxes bounds to a
// fixpoint across the active network, and (at LevelFull) disables any
// pending edge that can no longer be consistently enabled (spec §4.5).
func (e *Engine) Propagate(s *store.Store) (*reasoner.Conflict, error) {
	e.queue = e.queue[:0]

	// A freshly declared edge may already be enabled (its enabler is often
	// the store's always-true literal, entailed before any trail event ever
	// names it), so activation cannot rely solely on watching for literals
	// that transition to entailed on the trail.
	if e.level != LevelNone {
		e.activateAllReady(s)
	}

	for {
		idx, ok := trail.Next(e.cursor, s.Trail())
		if !ok {
			break
		}
		ev := s.Trail().At(idx)
		lit := ev.Lit

		if e.level == LevelNone {
			continue
		}

		e.tryActivate(s, e.byEnabler[lit])
		e.tryActivate(s, e.byScope[lit])

		if lit.Rel == store.LE {
			if len(e.outBySource[lit.Var]) > 0 {
				e.queue = append(e.queue, lit.Var)
			}
		} else {
			if len(e.outByTarget[lit.Var]) > 0 {
				e.queue = append(e.queue, lit.Var)
			}
		}
	}

	if e.level == LevelNone || e.level == LevelBound {
		return nil, nil
	}

	conflict, err := e.relax(s)
	if conflict != nil || err != nil {
		return conflict, err
	}

	if e.level == LevelFull {
		return e.disableInfeasiblePending(s)
	}
	return nil, nil
}

// tryActivate activates every still-pending edge in ids whose enabler and
// both endpoint presences are now entailed, seeding the relaxation worklist
// with its endpoints.
func (e *Engine) tryActivate(s *store.Store, ids []EdgeID) {
	for _, id := range ids {
		ed := e.edges[id]
		if ed.active {
			continue
		}
		if s.Entails(ed.enabler) && s.Entails(ed.srcScope) && s.Entails(ed.dstScope) {
			e.activate(ed)
			e.queue = append(e.queue, ed.source, ed.target)
		}
	}
}

// activateAllReady activates every pending edge whose enabler and scope are
// already entailed, independent of which literal the current propagation
// round's trail events happen to name.
func (e *Engine) activateAllReady(s *store.Store) {
	ids := make([]EdgeID, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	e.tryActivate(s, ids)
}

func (e *Engine) activate(ed *Edge) {
	ed.active = true
	delete(e.pending, ed.id)
	e.outBySource[ed.source] = append(e.outBySource[ed.source], ed.id)
	e.outByTarget[ed.target] = append(e.outByTarget[ed.target], ed.id)
	e.activated = append(e.activated, ed.id)
}

// deactivate reverses activate. It is only ever called, in reverse
// chronological order, on the tail of the activation log, so the edge being
// undone is always the most recent entry appended to its own source's and
// target's adjacency lists.
func (e *Engine) deactivate(ed *Edge) {
	ed.active = false
	e.pending[ed.id] = struct{}{}
	src := e.outBySource[ed.source]
	popTail(&src, ed.id)
	e.outBySource[ed.source] = src
	dst := e.outByTarget[ed.target]
	popTail(&dst, ed.id)
	e.outByTarget[ed.target] = dst
}

func popTail(lst *[]EdgeID, id EdgeID) {
	s := *lst
	if len(s) == 0 || s[len(s)-1] != id {
		panic("stn: activation log out of sync with adjacency index")
	}
	*lst = s[:len(s)-1]
}

// relax runs the active network to a fixpoint starting from the worklist
// queued by Propagate, mirroring the Bellman-Ford relaxation of the
// original recomputation but restricted to variables actually touched since
// the last call (spec §4.5, "incremental single-source shortest-paths").
// A tightening that would cross the variable's opposite bound surfaces
// directly as the domain store's own wipe-out, which is exactly a negative
// cycle in this model: the cycle's edges are whichever edge is being
// relaxed at that moment, plus (recursively, via Explain) whatever bound
// justified the value being propagated.
func (e *Engine) relax(s *store.Store) (*reasoner.Conflict, error) {
	// inQueue is a standard SPFA worklist membership flag, not a permanent
	// visited set: a variable must be eligible for reprocessing every time
	// one of its bounds tightens again, however many times that happens
	// while chasing a cycle of edges.
	inQueue := make(map[store.VarID]bool, len(e.queue))
	for _, v := range e.queue {
		inQueue[v] = true
	}

	for i := 0; i < len(e.queue); i++ {
		v := e.queue[i]
		inQueue[v] = false

		_, vUB := s.Bounds(v)
		vLB, _ := s.Bounds(v)

		for _, eid := range e.outBySource[v] {
			ed := e.edges[eid]
			newUB := vUB + ed.weight
			conflict, changed, err := e.tighten(s, ed, store.LELit(ed.target, newUB))
			if conflict != nil || err != nil {
				return conflict, err
			}
			if changed && !inQueue[ed.target] {
				inQueue[ed.target] = true
				e.queue = append(e.queue, ed.target)
			}
		}

		for _, eid := range e.outByTarget[v] {
			ed := e.edges[eid]
			newLB := vLB - ed.weight
			conflict, changed, err := e.tighten(s, ed, store.GELit(ed.source, newLB))
			if conflict != nil || err != nil {
				return conflict, err
			}
			if changed && !inQueue[ed.source] {
				inQueue[ed.source] = true
				e.queue = append(e.queue, ed.source)
			}
		}
	}
	return nil, nil
}

// tighten attempts to assert lit (a bound implied by ed) on the store. If it
// would empty ed's endpoint's domain, the contradiction is reported as a
// reasoner.Conflict naming ed's own enabler and scope, the bound on ed's
// other endpoint that produced the new value, and the existing
// opposite-direction bound that the new value collides with; full path
// reconstruction back through earlier edges happens lazily, one hop at a
// time, via later Explain calls driven by conflict analysis.
func (e *Engine) tighten(s *store.Store, ed *Edge, lit store.Literal) (conflict *reasoner.Conflict, changed bool, err error) {
	cause := store.InferenceCause(store.WriterSTN, uint32(ed.id))
	changed, setErr := s.Set(lit, cause)
	if setErr == nil {
		return nil, changed, nil
	}

	ede, ok := setErr.(*store.EmptyDomainError)
	if !ok {
		return nil, false, setErr
	}

	lits := []store.Literal{ed.enabler}
	if ed.srcScope != ed.enabler {
		lits = append(lits, ed.srcScope)
	}
	if ed.dstScope != ed.enabler {
		lits = append(lits, ed.dstScope)
	}
	if lit.Rel == store.LE {
		lits = append(lits, store.LELit(ed.source, lit.Bound-ed.weight))
		lits = append(lits, store.GELit(lit.Var, ede.PriorLB))
	} else {
		lits = append(lits, store.GELit(ed.target, lit.Bound+ed.weight))
		lits = append(lits, store.LELit(lit.Var, ede.PriorUB))
	}
	return &reasoner.Conflict{Literals: lits}, false, nil
}

// disableInfeasiblePending scans every still-pending edge and, if its
// endpoints' current bounds already make it impossible to enable without
// immediate contradiction, asserts the negation of its enabler (spec §4.5,
// "stronger levels additionally deduce that some pending edge must be
// disabled").
func (e *Engine) disableInfeasiblePending(s *store.Store) (*reasoner.Conflict, error) {
	for id := range e.pending {
		ed := e.edges[id]
		if s.Value(ed.enabler) != store.Unknown {
			continue
		}
		if !s.Entails(ed.srcScope) || !s.Entails(ed.dstScope) {
			continue
		}
		_, srcUB := s.Bounds(ed.source)
		dstLB, _ := s.Bounds(ed.target)
		if srcUB+ed.weight >= dstLB {
			continue // enabling ed would still be consistent
		}
		cause := store.InferenceCause(store.WriterSTN, uint32(ed.id)|pendingDisablePayloadBit)
		if _, err := s.Set(ed.enabler.Negate(), cause); err != nil {
			if conflict, ok := err.(*store.EmptyDomainError); ok {
				return &reasoner.Conflict{
					Literals: []store.Literal{
						ed.srcScope, ed.dstScope,
						store.LELit(ed.source, srcUB),
						store.GELit(ed.target, dstLB),
						store.GELit(conflict.Lit.Var, conflict.PriorLB),
					},
				}, nil
			}
			return nil, err
		}
	}
	return nil, nil
}

// pendingDisablePayloadBit distinguishes, in Explain, a "pending edge
// disabled" cause from an ordinary bound-tightening cause on the same edge.
const pendingDisablePayloadBit = uint32(1) << 31

// Explain expands a bound or disablement inferred by this engine into the
// literals that justify it (spec §4.5: "the shortest enabling path ... its
// edges' enablers and the original bound on the responsible variable").
// Because the engine relaxes one edge-hop per inference, a single call only
// needs to name that edge's own premises; conflict analysis supplies the
// multi-hop chase by calling Explain again on whichever of those premises is
// itself an inference.
func (e *Engine) Explain(lit store.Literal, payload uint32, snap *store.Snapshot, exp *store.Explanation) {
	disabled := payload&pendingDisablePayloadBit != 0
	ed := e.edges[payload&^pendingDisablePayloadBit]

	exp.Add(ed.srcScope)
	if ed.dstScope != ed.srcScope {
		exp.Add(ed.dstScope)
	}

	if disabled {
		_, srcUB := snap.Bounds(ed.source)
		dstLB, _ := snap.Bounds(ed.target)
		exp.Add(store.LELit(ed.source, srcUB))
		exp.Add(store.GELit(ed.target, dstLB))
		return
	}

	exp.Add(ed.enabler)
	if lit.Rel == store.LE {
		_, srcUB := snap.Bounds(ed.source)
		exp.Add(store.LELit(ed.source, srcUB))
	} else {
		dstLB, _ := snap.Bounds(ed.target)
		exp.Add(store.GELit(ed.target, dstLB))
	}
}

// --- reasoner.Reasoner backtracking hooks ---
//
// Bound tightenings are undone by the shared domain store's own rollback;
// this engine only needs to put back-tracked edges back into pending and
// drop them from the adjacency indices used by relax, via its own
// activation log (spec §9, "every reasoner owns exactly the backtrackable
// state the shared trail cannot").

func (e *Engine) SaveState() int {
	e.activationCheckpoint = append(e.activationCheckpoint, len(e.activated))
	e.savedLevels++
	return e.savedLevels
}

func (e *Engine) RestoreLast() {
	if e.savedLevels == 0 {
		panic("stn: RestoreLast called with no saved state")
	}
	last := e.activationCheckpoint[len(e.activationCheckpoint)-1]
	for i := len(e.activated) - 1; i >= last; i-- {
		e.deactivate(e.edges[e.activated[i]])
	}
	e.activated = e.activated[:last]
	e.activationCheckpoint = e.activationCheckpoint[:len(e.activationCheckpoint)-1]
	e.savedLevels--
}

func (e *Engine) NumSaved() int { return e.savedLevels }
