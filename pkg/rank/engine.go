package rank

import (
	"errors"
	"fmt"

	"github.com/small-frappuccino/activityboard/pkg/log"
	"github.com/small-frappuccino/activityboard/pkg/storage"
)

// Metric selects which activity dimension a ranking is computed over.
type Metric int

const (
	MetricMessages Metric = iota
	MetricVoice
)

func (m Metric) String() string {
	switch m {
	case MetricMessages:
		return "messages"
	case MetricVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// ErrMemberNotFound is returned by a Directory when the user is no longer a
// member of the guild.
var ErrMemberNotFound = errors.New("member not found")

// Member is the directory's view of a guild member.
type Member struct {
	Mention     string
	IsAutomated bool
}

// Directory resolves live guild membership. Lookups may hit the network.
type Directory interface {
	ResolveMember(guildID, userID string) (Member, error)
}

// CounterSource is the slice of the counter store the engine reads.
type CounterSource interface {
	TopByMessages(guildID string, limit int) ([]storage.UserStat, error)
	TopByVoice(guildID string, limit int) ([]storage.UserStat, error)
}

// Entry is one accepted leaderboard row. Rank starts at 1 and counts only
// accepted entries: filtered candidates never occupy a rank.
type Entry struct {
	UserID  string
	Mention string
	Value   int64
	Rank    int
}

// Engine computes filtered top-N rankings for a guild and metric.
type Engine struct {
	counters  CounterSource
	directory Directory
	overFetch int
}

// NewEngine creates an Engine. overFetch multiplies the requested display
// size when pulling candidates from storage (observed deployments use 2-3x);
// values below 1 are raised to 1.
func NewEngine(counters CounterSource, directory Directory, overFetch int) *Engine {
	if overFetch < 1 {
		overFetch = 1
	}
	return &Engine{counters: counters, directory: directory, overFetch: overFetch}
}

// Top returns up to n accepted entries for the guild and metric, descending
// by value. Candidates are dropped when they left the guild or are automated
// accounts; candidates whose directory lookup fails transiently are skipped
// so one flaky lookup cannot sink the whole ranking. Fewer than n entries
// (possibly zero) are returned when the candidate pool is thin.
func (e *Engine) Top(guildID string, metric Metric, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	var (
		candidates []storage.UserStat
		err        error
	)
	switch metric {
	case MetricMessages:
		candidates, err = e.counters.TopByMessages(guildID, n*e.overFetch)
	case MetricVoice:
		candidates, err = e.counters.TopByVoice(guildID, n*e.overFetch)
	default:
		return nil, fmt.Errorf("unknown metric %d", metric)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	entries := make([]Entry, 0, n)
	for _, c := range candidates {
		member, err := e.directory.ResolveMember(guildID, c.UserID)
		if err != nil {
			if !errors.Is(err, ErrMemberNotFound) {
				log.DiscordLogger().Warn("Member lookup failed; skipping candidate",
					"guildID", guildID, "userID", c.UserID, "err", err)
			}
			continue
		}
		if member.IsAutomated {
			continue
		}

		value := c.Messages
		if metric == MetricVoice {
			value = c.VoiceSeconds
		}
		entries = append(entries, Entry{
			UserID:  c.UserID,
			Mention: member.Mention,
			Value:   value,
			Rank:    len(entries) + 1,
		})
		if len(entries) == n {
			break
		}
	}
	return entries, nil
}
