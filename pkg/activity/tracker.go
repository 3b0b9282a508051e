package activity

import (
	"sync"
	"time"

	"github.com/small-frappuccino/activityboard/pkg/log"
)

type sessionKey struct {
	guildID string
	userID  string
}

// SessionTracker maps open voice sessions to their start time. It lives only
// in process memory: a restart drops open sessions, and the partial elapsed
// time of those sessions is an accepted undercount.
type SessionTracker struct {
	mu   sync.Mutex
	open map[sessionKey]time.Time
}

// NewSessionTracker creates an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{open: make(map[sessionKey]time.Time)}
}

// Transition applies one voice-state transition and returns the elapsed
// session duration when a session closed.
//
//   - no channel → channel: opens a session at now. If one is already open
//     for the key a leave event was missed; the original start time is kept
//     so the user is not under-counted, and the anomaly is logged.
//   - channel → no channel: closes the session and returns its elapsed time
//     clamped to ≥0. Without an open session (restart mid-session) it
//     returns closed=false.
//   - channel → channel and none → none are no-ops.
func (t *SessionTracker) Transition(guildID, userID string, hadBefore, hasAfter bool, now time.Time) (elapsed time.Duration, closed bool) {
	key := sessionKey{guildID: guildID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case !hadBefore && hasAfter:
		if _, exists := t.open[key]; exists {
			log.DiscordLogger().Warn("Voice session already open on join; keeping original start",
				"guildID", guildID, "userID", userID)
			return 0, false
		}
		t.open[key] = now
		return 0, false

	case hadBefore && !hasAfter:
		start, exists := t.open[key]
		if !exists {
			return 0, false
		}
		delete(t.open, key)
		elapsed := now.Sub(start)
		if elapsed < 0 {
			elapsed = 0
		}
		return elapsed, true

	default:
		return 0, false
	}
}

// Reopen restores an open session at start, unless one is already open.
// The recorder uses it to roll back a close whose counter write failed, so
// the in-memory state never diverges from storage.
func (t *SessionTracker) Reopen(guildID, userID string, start time.Time) {
	key := sessionKey{guildID: guildID, userID: userID}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.open[key]; !exists {
		t.open[key] = start
	}
}

// OpenSession reports whether a session is open for (guildID, userID) and
// its start time.
func (t *SessionTracker) OpenSession(guildID, userID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.open[sessionKey{guildID: guildID, userID: userID}]
	return start, ok
}

// OpenCount returns the number of currently open sessions.
func (t *SessionTracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
