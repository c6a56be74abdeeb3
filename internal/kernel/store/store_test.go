package store

import (
	"testing"

	"github.com/lcgkit/solver/internal/kernel/trail"
)

func newTestStore() *Store {
	return New(trail.New[Event]())
}

func TestSetAlreadyEntailedReturnsFalse(t *testing.T) {
	s := newTestStore()
	v := s.NewVariable(KindInt, 0, 10, "x")

	ok, err := s.Set(LELit(v, 10), EncodingCause())
	if err != nil || ok {
		t.Fatalf("Set(x<=10) on domain [0,10] = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSetOppositeReturnsEmpty(t *testing.T) {
	s := newTestStore()
	v := s.NewVariable(KindInt, 0, 10, "x")

	if _, err := s.Set(LELit(v, 3), EncodingCause()); err != nil {
		t.Fatalf("unexpected error tightening ub: %v", err)
	}
	_, err := s.Set(GELit(v, 4), EncodingCause())
	if err == nil {
		t.Fatal("expected empty-domain error setting x>=4 after x<=3")
	}
	var ede *EmptyDomainError
	if !asEmptyDomainError(err, &ede) {
		t.Fatalf("expected *EmptyDomainError, got %T", err)
	}
}

func asEmptyDomainError(err error, target **EmptyDomainError) bool {
	if e, ok := err.(*EmptyDomainError); ok {
		*target = e
		return true
	}
	return false
}

func TestSaveRestoreRoundTripsStore(t *testing.T) {
	s := newTestStore()
	v := s.NewVariable(KindInt, 0, 10, "x")

	lvl := s.trail.Save()
	if _, err := s.Set(LELit(v, 5), DecisionCause()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(GELit(v, 2), DecisionCause()); err != nil {
		t.Fatal(err)
	}

	lb, ub := s.Bounds(v)
	if lb != 2 || ub != 5 {
		t.Fatalf("bounds = [%d,%d], want [2,5]", lb, ub)
	}

	s.trail.Restore(func(e Event) { s.Undo(e) })
	_ = lvl

	lb, ub = s.Bounds(v)
	if lb != 0 || ub != 10 {
		t.Fatalf("bounds after restore = [%d,%d], want [0,10]", lb, ub)
	}
}

func TestImpliesDirectAndContrapositiveViaAddImplication(t *testing.T) {
	s := newTestStore()
	v := s.NewVariable(KindBool, 0, 1, "a")
	w := s.NewVariable(KindBool, 0, 1, "b")

	a := PositiveLiteral(v)
	b := PositiveLiteral(w)
	s.AddImplication(a, b)

	if !s.Implies(a, b) {
		t.Fatal("expected a => b")
	}
	if !s.Implies(b.Negate(), a.Negate()) {
		t.Fatal("expected contrapositive !b => !a")
	}
}

func TestEventLevelMatchesDecisionLevel(t *testing.T) {
	s := newTestStore()
	v := s.NewVariable(KindInt, 0, 100, "x")

	s.trail.Save() // level 1
	if _, err := s.Set(LELit(v, 50), DecisionCause()); err != nil {
		t.Fatal(err)
	}
	s.trail.Save() // level 2
	if _, err := s.Set(LELit(v, 10), DecisionCause()); err != nil {
		t.Fatal(err)
	}

	if lvl := s.EventLevel(LELit(v, 50)); lvl != 1 {
		t.Fatalf("EventLevel(x<=50) = %d, want 1", lvl)
	}
	if lvl := s.EventLevel(LELit(v, 10)); lvl != 2 {
		t.Fatalf("EventLevel(x<=10) = %d, want 2", lvl)
	}
	// x<=20 became entailed at the same time as x<=10 (monotone tightening),
	// so it shares its level.
	if lvl := s.EventLevel(LELit(v, 20)); lvl != 2 {
		t.Fatalf("EventLevel(x<=20) = %d, want 2", lvl)
	}
}

func TestSnapshotSeesStateBeforeLaterTightening(t *testing.T) {
	s := newTestStore()
	v := s.NewVariable(KindInt, 0, 100, "x")

	idx := s.trail.Len()
	if _, err := s.Set(LELit(v, 50), DecisionCause()); err != nil {
		t.Fatal(err)
	}
	snapAt := s.trail.Len()
	if _, err := s.Set(LELit(v, 10), DecisionCause()); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot(snapAt)
	_, ub := snap.Bounds(v)
	if ub != 50 {
		t.Fatalf("snapshot ub = %d, want 50 (state before the x<=10 event)", ub)
	}

	_, ub = s.Bounds(v)
	if ub != 10 {
		t.Fatalf("current ub = %d, want 10", ub)
	}
	_ = idx
}
