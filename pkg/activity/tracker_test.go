package activity

import (
	"testing"
	"time"
)

func TestTransitionJoinThenLeave(t *testing.T) {
	tr := NewSessionTracker()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, closed := tr.Transition("g1", "u1", false, true, start); closed {
		t.Fatalf("join must not close a session")
	}
	if _, ok := tr.OpenSession("g1", "u1"); !ok {
		t.Fatalf("session should be open after join")
	}

	elapsed, closed := tr.Transition("g1", "u1", true, false, start.Add(125*time.Second))
	if !closed {
		t.Fatalf("leave should close the session")
	}
	if elapsed != 125*time.Second {
		t.Fatalf("expected 125s, got %s", elapsed)
	}
	if tr.OpenCount() != 0 {
		t.Fatalf("session should be removed after leave")
	}
}

func TestTransitionDuplicateJoinKeepsOriginalStart(t *testing.T) {
	tr := NewSessionTracker()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tr.Transition("g1", "u1", false, true, start)
	tr.Transition("g1", "u1", false, true, start.Add(60*time.Second))

	elapsed, closed := tr.Transition("g1", "u1", true, false, start.Add(120*time.Second))
	if !closed || elapsed != 120*time.Second {
		t.Fatalf("expected 120s from original start, got %s (closed=%v)", elapsed, closed)
	}
}

func TestTransitionOrphanLeaveIsNoDelta(t *testing.T) {
	tr := NewSessionTracker()

	elapsed, closed := tr.Transition("g1", "u1", true, false, time.Now())
	if closed || elapsed != 0 {
		t.Fatalf("orphan leave must report no delta, got %s (closed=%v)", elapsed, closed)
	}
}

func TestTransitionChannelMoveIsNoOp(t *testing.T) {
	tr := NewSessionTracker()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tr.Transition("g1", "u1", false, true, start)

	// Move between voice channels: both sides non-empty.
	if _, closed := tr.Transition("g1", "u1", true, true, start.Add(time.Minute)); closed {
		t.Fatalf("channel move must not close the session")
	}

	elapsed, closed := tr.Transition("g1", "u1", true, false, start.Add(2*time.Minute))
	if !closed || elapsed != 2*time.Minute {
		t.Fatalf("expected 2m spanning the move, got %s (closed=%v)", elapsed, closed)
	}
}

func TestTransitionClampsNegativeElapsed(t *testing.T) {
	tr := NewSessionTracker()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tr.Transition("g1", "u1", false, true, start)
	elapsed, closed := tr.Transition("g1", "u1", true, false, start.Add(-time.Minute))
	if !closed || elapsed != 0 {
		t.Fatalf("elapsed must clamp to 0, got %s (closed=%v)", elapsed, closed)
	}
}

func TestSessionsAreIndependentPerGuildAndUser(t *testing.T) {
	tr := NewSessionTracker()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tr.Transition("g1", "u1", false, true, start)
	tr.Transition("g2", "u1", false, true, start)
	tr.Transition("g1", "u2", false, true, start)

	if tr.OpenCount() != 3 {
		t.Fatalf("expected 3 open sessions, got %d", tr.OpenCount())
	}

	elapsed, closed := tr.Transition("g2", "u1", true, false, start.Add(30*time.Second))
	if !closed || elapsed != 30*time.Second {
		t.Fatalf("unexpected close result: %s (closed=%v)", elapsed, closed)
	}
	if tr.OpenCount() != 2 {
		t.Fatalf("other sessions must stay open, got %d", tr.OpenCount())
	}
}

func TestReopenDoesNotOverwriteOpenSession(t *testing.T) {
	tr := NewSessionTracker()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tr.Transition("g1", "u1", false, true, start)
	tr.Reopen("g1", "u1", start.Add(time.Hour))

	got, ok := tr.OpenSession("g1", "u1")
	if !ok || !got.Equal(start) {
		t.Fatalf("reopen must not clobber an open session, got %v (ok=%v)", got, ok)
	}
}
