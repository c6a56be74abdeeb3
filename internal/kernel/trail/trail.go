// Package trail implements the chronological, checkpointable event log
// (spec §4.1) shared by the domain store and every reasoner. Every bound
// change of the domain store is recorded here; reasoners read it through a
// Cursor. The STN and equality theories keep their own small activation undo
// logs, saved and restored in lockstep with this trail.
package trail

// Level identifies a decision-level checkpoint. Level 0 is the root: no
// events recorded before the first Save can ever be rolled back.
type Level int

// Trail is an append-only log of events of type E with O(1) checkpointing
// and amortised O(1)-per-event rollback. It is generic over the event type;
// the kernel instantiates it once, with store.Event, and shares that trail
// between the domain store and every reasoner.
type Trail[E any] struct {
	events     []E
	checkpoint []int // checkpoint[L-1] == index of the first event recorded at level L
}

// New returns an empty trail.
func New[E any]() *Trail[E] {
	return &Trail[E]{}
}

// Push appends e to the trail. It never fails.
func (t *Trail[E]) Push(e E) {
	t.events = append(t.events, e)
}

// Len returns the number of events currently on the trail.
func (t *Trail[E]) Len() int {
	return len(t.events)
}

// CurrentLevel returns the number of checkpoints saved so far, i.e. the
// current decision level.
func (t *Trail[E]) CurrentLevel() Level {
	return Level(len(t.checkpoint))
}

// Save pushes a new checkpoint at the current trail position and returns its
// level. Level numbering is strictly increasing between calls to Save that
// are not preceded by a matching Restore; a Save that immediately follows a
// Restore re-uses the level number that Restore just popped.
func (t *Trail[E]) Save() Level {
	t.checkpoint = append(t.checkpoint, len(t.events))
	return Level(len(t.checkpoint))
}

// Restore pops the last checkpoint and invokes undo on every event recorded
// since that checkpoint, in reverse (most recent first) order. It panics if
// called at level 0: rolling back past the root is a programmer error, never
// a recoverable condition (spec §4.1, "empty rollback at level 0 is a
// program error").
func (t *Trail[E]) Restore(undo func(E)) {
	if len(t.checkpoint) == 0 {
		panic("trail: restore called at root level")
	}
	last := t.checkpoint[len(t.checkpoint)-1]
	for i := len(t.events) - 1; i >= last; i-- {
		undo(t.events[i])
	}
	t.events = t.events[:last]
	t.checkpoint = t.checkpoint[:len(t.checkpoint)-1]
}

// EventsAfter returns the events recorded at or after the start of level l,
// in trail order. The returned slice aliases the trail's backing array and
// must not be retained across a Push or Restore.
func (t *Trail[E]) EventsAfter(l Level) []E {
	if int(l) >= len(t.checkpoint) {
		return nil
	}
	return t.events[t.checkpoint[l]:]
}

// LevelOf returns the decision level at which the event at the given trail
// index was recorded.
func (t *Trail[E]) LevelOf(eventIndex int) Level {
	// checkpoint is sorted ascending; find the last checkpoint <= eventIndex.
	lo, hi := 0, len(t.checkpoint)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.checkpoint[mid] <= eventIndex {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return Level(lo)
}

// At returns the event recorded at the given trail index.
func (t *Trail[E]) At(eventIndex int) E {
	return t.events[eventIndex]
}

// LastMatching scans the trail backwards from the end and returns the index
// of the last event for which pred returns true, along with ok=true. It is
// used by conflict analysis to locate, e.g., the most recent event on a
// variable of interest.
func (t *Trail[E]) LastMatching(pred func(E) bool) (index int, ok bool) {
	for i := len(t.events) - 1; i >= 0; i-- {
		if pred(t.events[i]) {
			return i, true
		}
	}
	return 0, false
}

// Cursor tracks a consumer's read progress through a Trail. It survives
// rollbacks: if a Restore shrinks the trail below the cursor's position, the
// cursor is silently rewound to the new tail so that the next Next() resumes
// from a consistent point without any bookkeeping from the consumer (spec
// §4.1: "a cursor ... is resilient to rollbacks").
type Cursor struct {
	pos int
}

// NewCursor returns a cursor starting at the beginning of the trail.
func NewCursor() *Cursor {
	return &Cursor{}
}

// Next returns the next unconsumed event index in [0, t.Len()) and advances
// the cursor, or ok=false if the cursor has caught up with the trail.
func Next[E any](c *Cursor, t *Trail[E]) (index int, ok bool) {
	if c.pos > t.Len() {
		c.pos = t.Len()
	}
	if c.pos >= t.Len() {
		return 0, false
	}
	idx := c.pos
	c.pos++
	return idx, true
}

// Rewind resets the cursor back to the start of the trail, forcing the next
// drain to replay every event currently on it.
func (c *Cursor) Rewind() {
	c.pos = 0
}

// Pos reports the cursor's current read position, mostly for tests.
func (c *Cursor) Pos() int {
	return c.pos
}
