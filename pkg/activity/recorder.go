package activity

import (
	"time"

	"github.com/small-frappuccino/activityboard/pkg/log"
)

// Counters is the slice of the durable store the recorder writes to.
type Counters interface {
	IncrementMessages(guildID, userID string) error
	AddVoiceSeconds(guildID, userID string, seconds int64) error
}

// Recorder consumes activity events and feeds the counter store and session
// tracker. It runs on the event-ingestion path: it never blocks on anything
// but the local store, and a persistence failure is logged rather than
// propagated so one bad write cannot take down event handling.
type Recorder struct {
	counters Counters
	tracker  *SessionTracker
	now      func() time.Time
}

// NewRecorder creates a Recorder. tracker must not be nil.
func NewRecorder(counters Counters, tracker *SessionTracker) *Recorder {
	return &Recorder{
		counters: counters,
		tracker:  tracker,
		now:      time.Now,
	}
}

// Handle dispatches one event to the matching handler.
func (r *Recorder) Handle(ev Event) {
	switch e := ev.(type) {
	case MessageCreated:
		r.handleMessage(e)
	case VoiceStateChanged:
		r.handleVoice(e)
	}
}

func (r *Recorder) handleMessage(ev MessageCreated) {
	if ev.IsAutomated || ev.AuthorID == "" || ev.GuildID == "" {
		return
	}
	if err := r.counters.IncrementMessages(ev.GuildID, ev.AuthorID); err != nil {
		log.DatabaseLogger().Error("Failed to record message",
			"guildID", ev.GuildID, "userID", ev.AuthorID, "err", err)
	}
}

func (r *Recorder) handleVoice(ev VoiceStateChanged) {
	if ev.IsAutomated || ev.UserID == "" || ev.GuildID == "" {
		return
	}

	now := r.now()
	elapsed, closed := r.tracker.Transition(ev.GuildID, ev.UserID, ev.HadChannelBefore, ev.HasChannelAfter, now)
	if !closed {
		return
	}

	seconds := int64(elapsed.Seconds())
	if seconds <= 0 {
		return
	}
	if err := r.counters.AddVoiceSeconds(ev.GuildID, ev.UserID, seconds); err != nil {
		// Roll the session back so the elapsed time is not lost; it will be
		// re-counted on the next successful close.
		r.tracker.Reopen(ev.GuildID, ev.UserID, now.Add(-elapsed))
		log.DatabaseLogger().Error("Failed to record voice time; session restored",
			"guildID", ev.GuildID, "userID", ev.UserID, "seconds", seconds, "err", err)
	}
}
