package activity

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCounters struct {
	mu       sync.Mutex
	messages map[string]int64
	voice    map[string]int64
	failNext error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{
		messages: make(map[string]int64),
		voice:    make(map[string]int64),
	}
}

func (f *fakeCounters) IncrementMessages(guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.messages[guildID+":"+userID]++
	return nil
}

func (f *fakeCounters) AddVoiceSeconds(guildID, userID string, seconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.voice[guildID+":"+userID] += seconds
	return nil
}

func newTestRecorder(counters Counters) (*Recorder, *SessionTracker, *time.Time) {
	tracker := NewSessionTracker()
	rec := NewRecorder(counters, tracker)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	rec.now = func() time.Time { return *clock }
	return rec, tracker, clock
}

func TestRecorderMessagesThenVoiceScenario(t *testing.T) {
	counters := newFakeCounters()
	rec, _, clock := newTestRecorder(counters)

	for i := 0; i < 3; i++ {
		rec.Handle(MessageCreated{AuthorID: "u1", GuildID: "g1"})
	}

	rec.Handle(VoiceStateChanged{UserID: "u1", GuildID: "g1", HadChannelBefore: false, HasChannelAfter: true})
	*clock = clock.Add(125 * time.Second)
	rec.Handle(VoiceStateChanged{UserID: "u1", GuildID: "g1", HadChannelBefore: true, HasChannelAfter: false})

	if got := counters.messages["g1:u1"]; got != 3 {
		t.Fatalf("expected 3 messages, got %d", got)
	}
	if got := counters.voice["g1:u1"]; got != 125 {
		t.Fatalf("expected 125 voice seconds, got %d", got)
	}
}

func TestRecorderIgnoresAutomatedAccounts(t *testing.T) {
	counters := newFakeCounters()
	rec, tracker, _ := newTestRecorder(counters)

	rec.Handle(MessageCreated{AuthorID: "bot", GuildID: "g1", IsAutomated: true})
	rec.Handle(VoiceStateChanged{UserID: "bot", GuildID: "g1", IsAutomated: true, HasChannelAfter: true})

	if len(counters.messages) != 0 {
		t.Fatalf("bot messages must not be counted: %v", counters.messages)
	}
	if tracker.OpenCount() != 0 {
		t.Fatalf("bot voice sessions must not be tracked")
	}
}

func TestRecorderOrphanLeaveWritesNothing(t *testing.T) {
	counters := newFakeCounters()
	rec, _, _ := newTestRecorder(counters)

	rec.Handle(VoiceStateChanged{UserID: "u1", GuildID: "g1", HadChannelBefore: true, HasChannelAfter: false})

	if len(counters.voice) != 0 {
		t.Fatalf("orphan leave must not write voice time: %v", counters.voice)
	}
}

func TestRecorderRestoresSessionOnPersistenceFailure(t *testing.T) {
	counters := newFakeCounters()
	rec, tracker, clock := newTestRecorder(counters)

	rec.Handle(VoiceStateChanged{UserID: "u1", GuildID: "g1", HasChannelAfter: true})
	*clock = clock.Add(60 * time.Second)

	counters.failNext = errors.New("disk full")
	rec.Handle(VoiceStateChanged{UserID: "u1", GuildID: "g1", HadChannelBefore: true})

	if len(counters.voice) != 0 {
		t.Fatalf("failed write must not leave partial counters: %v", counters.voice)
	}
	start, ok := tracker.OpenSession("g1", "u1")
	if !ok {
		t.Fatalf("session should be restored after persistence failure")
	}

	// The next successful leave accounts for the full elapsed time.
	*clock = clock.Add(30 * time.Second)
	rec.Handle(VoiceStateChanged{UserID: "u1", GuildID: "g1", HadChannelBefore: true})
	if got := counters.voice["g1:u1"]; got != 90 {
		t.Fatalf("expected 90 seconds after retry, got %d (restored start %v)", got, start)
	}
}

func TestRecorderConcurrentMessageEvents(t *testing.T) {
	counters := newFakeCounters()
	rec, _, _ := newTestRecorder(counters)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Handle(MessageCreated{AuthorID: "u1", GuildID: "g1"})
		}()
	}
	wg.Wait()

	if got := counters.messages["g1:u1"]; got != n {
		t.Fatalf("expected %d messages, got %d", n, got)
	}
}
