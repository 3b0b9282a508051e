package storage

import (
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "stats.db"))
	if err := s.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIncrementMessagesCreatesAndAccumulates(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.IncrementMessages("g1", "u1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	st, ok, err := s.UserStat("g1", "u1")
	if err != nil || !ok {
		t.Fatalf("stat lookup: ok=%v err=%v", ok, err)
	}
	if st.Messages != 3 || st.VoiceSeconds != 0 {
		t.Fatalf("unexpected counters: %+v", st)
	}
}

func TestIncrementMessagesConcurrent(t *testing.T) {
	s := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IncrementMessages("g1", "u1")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent increment: %v", err)
		}
	}

	st, _, err := s.UserStat("g1", "u1")
	if err != nil {
		t.Fatalf("stat lookup: %v", err)
	}
	if st.Messages != n {
		t.Fatalf("expected %d messages, got %d", n, st.Messages)
	}
}

func TestAddVoiceSeconds(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddVoiceSeconds("g1", "u1", 125); err != nil {
		t.Fatalf("add voice: %v", err)
	}
	if err := s.AddVoiceSeconds("g1", "u1", 75); err != nil {
		t.Fatalf("add voice: %v", err)
	}
	// Non-positive deltas are ignored.
	if err := s.AddVoiceSeconds("g1", "u1", -10); err != nil {
		t.Fatalf("add negative voice: %v", err)
	}

	st, _, err := s.UserStat("g1", "u1")
	if err != nil {
		t.Fatalf("stat lookup: %v", err)
	}
	if st.VoiceSeconds != 200 {
		t.Fatalf("expected 200 voice seconds, got %d", st.VoiceSeconds)
	}
}

func TestTopOrderingAndTieBreak(t *testing.T) {
	s := newTestStore(t)

	seed := []struct {
		user  string
		msgs  int
		voice int64
	}{
		{"u-c", 5, 10},
		{"u-a", 5, 30},
		{"u-b", 9, 20},
	}
	for _, row := range seed {
		for i := 0; i < row.msgs; i++ {
			if err := s.IncrementMessages("g1", row.user); err != nil {
				t.Fatalf("seed messages: %v", err)
			}
		}
		if err := s.AddVoiceSeconds("g1", row.user, row.voice); err != nil {
			t.Fatalf("seed voice: %v", err)
		}
	}

	byMsgs, err := s.TopByMessages("g1", 10)
	if err != nil {
		t.Fatalf("top by messages: %v", err)
	}
	wantMsgs := []string{"u-b", "u-a", "u-c"} // tie between u-a/u-c broken by user id
	for i, want := range wantMsgs {
		if byMsgs[i].UserID != want {
			t.Fatalf("messages order[%d]: want %s got %s", i, want, byMsgs[i].UserID)
		}
	}

	byVoice, err := s.TopByVoice("g1", 2)
	if err != nil {
		t.Fatalf("top by voice: %v", err)
	}
	if len(byVoice) != 2 || byVoice[0].UserID != "u-a" || byVoice[1].UserID != "u-b" {
		t.Fatalf("unexpected voice order: %+v", byVoice)
	}
}

func TestTopIsScopedPerGuild(t *testing.T) {
	s := newTestStore(t)

	if err := s.IncrementMessages("g1", "u1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.IncrementMessages("g2", "u2"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows, err := s.TopByMessages("g1", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != "u1" {
		t.Fatalf("expected only g1 rows, got %+v", rows)
	}
}

func TestLeaderboardChannelRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.LeaderboardChannel("g1", PurposeMessageChannel); err != nil || ok {
		t.Fatalf("expected no setting, ok=%v err=%v", ok, err)
	}

	if err := s.SetLeaderboardChannel("g1", PurposeMessageChannel, "chan-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetLeaderboardChannel("g1", PurposeMessageChannel, "chan-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	ch, ok, err := s.LeaderboardChannel("g1", PurposeMessageChannel)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if ch != "chan-2" {
		t.Fatalf("expected chan-2, got %s", ch)
	}

	if err := s.ClearLeaderboardChannel("g1", PurposeMessageChannel); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.LeaderboardChannel("g1", PurposeMessageChannel); ok {
		t.Fatalf("setting should be removed")
	}
}
