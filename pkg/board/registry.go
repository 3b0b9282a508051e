package board

import (
	"fmt"
	"sync"

	"github.com/small-frappuccino/activityboard/pkg/log"
	"github.com/small-frappuccino/activityboard/pkg/rank"
	"github.com/small-frappuccino/activityboard/pkg/util"
)

// Artifact identifies one posted leaderboard message.
type Artifact struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// GuildArtifacts holds both posted leaderboard messages for a guild.
type GuildArtifacts struct {
	Messages Artifact `json:"messages"`
	Voice    Artifact `json:"voice"`
}

// ByMetric returns the artifact for a metric.
func (g GuildArtifacts) ByMetric(metric rank.Metric) Artifact {
	if metric == rank.MetricVoice {
		return g.Voice
	}
	return g.Messages
}

// Registry maps guilds to their posted leaderboard artifacts and persists
// the mapping to a flat JSON file so the reconciler can keep editing the
// same messages across restarts. Every mutation is written to disk before
// it becomes visible in memory; a failed write leaves both unchanged.
type Registry struct {
	mu     sync.RWMutex
	mgr    *util.JSONManager
	boards map[string]GuildArtifacts
}

// NewRegistry creates a Registry backed by the JSON file at path.
func NewRegistry(path string) *Registry {
	return &Registry{
		mgr:    util.NewJSONManager(path),
		boards: make(map[string]GuildArtifacts),
	}
}

// Load reads the registry file once at startup. A missing file starts
// empty; a malformed file is logged and treated as empty rather than
// blocking startup.
func (r *Registry) Load() error {
	loaded := make(map[string]GuildArtifacts)
	if err := r.mgr.Load(&loaded); err != nil {
		log.ApplicationLogger().Warn("Leaderboard registry unreadable; starting empty",
			"path", r.mgr.Path(), "err", err)
		loaded = make(map[string]GuildArtifacts)
	}

	r.mu.Lock()
	r.boards = loaded
	r.mu.Unlock()

	log.ApplicationLogger().Info("Leaderboard registry loaded",
		"path", r.mgr.Path(), "guilds", len(loaded))
	return nil
}

// Get returns the artifacts registered for a guild.
func (r *Registry) Get(guildID string) (GuildArtifacts, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	arts, ok := r.boards[guildID]
	return arts, ok
}

// GuildIDs returns every guild with a registered artifact.
func (r *Registry) GuildIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.boards))
	for id := range r.boards {
		ids = append(ids, id)
	}
	return ids
}

// Put registers (or replaces) the artifacts for a guild.
func (r *Registry) Put(guildID string, arts GuildArtifacts) error {
	return r.mutate(func(boards map[string]GuildArtifacts) error {
		boards[guildID] = arts
		return nil
	})
}

// UpdateMessageID overwrites the stored message id for one metric after a
// repost. It fails if the guild has no registered artifacts; the check
// happens under the write lock so a concurrent Delete cannot slip between
// check and update and leave a half-empty entry behind.
func (r *Registry) UpdateMessageID(guildID string, metric rank.Metric, messageID string) error {
	return r.mutate(func(boards map[string]GuildArtifacts) error {
		arts, ok := boards[guildID]
		if !ok {
			return fmt.Errorf("no artifacts registered for guild %s", guildID)
		}
		if metric == rank.MetricVoice {
			arts.Voice.MessageID = messageID
		} else {
			arts.Messages.MessageID = messageID
		}
		boards[guildID] = arts
		return nil
	})
}

// Delete removes a guild from the registry (no error if absent).
func (r *Registry) Delete(guildID string) error {
	return r.mutate(func(boards map[string]GuildArtifacts) error {
		delete(boards, guildID)
		return nil
	})
}

// mutate applies fn to a copy of the map, persists the copy, and only then
// swaps it in. A failing fn leaves memory and disk untouched.
func (r *Registry) mutate(fn func(map[string]GuildArtifacts) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]GuildArtifacts, len(r.boards)+1)
	for k, v := range r.boards {
		next[k] = v
	}
	if err := fn(next); err != nil {
		return err
	}

	if err := r.mgr.Save(next); err != nil {
		return fmt.Errorf("persist leaderboard registry: %w", err)
	}
	r.boards = next
	return nil
}
