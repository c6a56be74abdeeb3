package trail

import "testing"

func TestSaveRestoreRoundTrip(t *testing.T) {
	tr := New[int]()
	tr.Push(1)
	tr.Push(2)

	lvl := tr.Save()
	if lvl != 1 {
		t.Fatalf("first save should be level 1, got %d", lvl)
	}

	tr.Push(3)
	tr.Push(4)

	var undone []int
	tr.Restore(func(e int) { undone = append(undone, e) })

	if tr.Len() != 2 {
		t.Fatalf("expected trail length 2 after restore, got %d", tr.Len())
	}
	if got, want := undone, []int{4, 3}; !equalInts(got, want) {
		t.Fatalf("undo order = %v, want %v", got, want)
	}

	lvl2 := tr.Save()
	if lvl2 != lvl {
		t.Fatalf("level after restore+save should reuse %d, got %d", lvl, lvl2)
	}
}

func TestRestoreAtRootPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic restoring at root level")
		}
	}()
	tr := New[int]()
	tr.Restore(func(int) {})
}

func TestLevelOf(t *testing.T) {
	tr := New[string]()
	tr.Push("a") // level 0
	tr.Save()    // level 1 starts here
	tr.Push("b")
	tr.Push("c")
	tr.Save() // level 2 starts here
	tr.Push("d")

	cases := []struct {
		idx  int
		want Level
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
	}
	for _, c := range cases {
		if got := tr.LevelOf(c.idx); got != c.want {
			t.Errorf("LevelOf(%d) = %d, want %d", c.idx, got, c.want)
		}
	}
}

func TestCursorResilientToRollback(t *testing.T) {
	tr := New[int]()
	c := NewCursor()

	tr.Push(1)
	tr.Push(2)
	tr.Save()
	tr.Push(3)

	idx, ok := Next(c, tr)
	if !ok || tr.At(idx) != 1 {
		t.Fatalf("expected first event 1, got idx=%d ok=%v", idx, ok)
	}

	// Roll back event 3, which the cursor has not read yet (its next event
	// is 2).
	tr.Restore(func(int) {})

	// The cursor should not report an index beyond the new tail.
	idx, ok = Next(c, tr)
	if !ok || tr.At(idx) != 2 {
		t.Fatalf("expected cursor to resume at event 2, got idx=%d ok=%v", idx, ok)
	}

	_, ok = Next(c, tr)
	if ok {
		t.Fatal("expected cursor to be drained")
	}
}

func TestLastMatching(t *testing.T) {
	tr := New[int]()
	tr.Push(1)
	tr.Push(2)
	tr.Push(3)
	tr.Push(2)

	idx, ok := tr.LastMatching(func(e int) bool { return e == 2 })
	if !ok || idx != 3 {
		t.Fatalf("LastMatching = (%d, %v), want (3, true)", idx, ok)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
