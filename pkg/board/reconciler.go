package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/small-frappuccino/activityboard/pkg/log"
	"github.com/small-frappuccino/activityboard/pkg/rank"
	"github.com/small-frappuccino/activityboard/pkg/storage"
)

// Sentinel errors returned by Publish, Tick and ForceUpdate.
var (
	// ErrNotConfigured means the guild is missing one or both leaderboard
	// channel settings.
	ErrNotConfigured = errors.New("leaderboard channels not configured")

	// ErrNotPublished means the guild has no registered leaderboard
	// messages yet.
	ErrNotPublished = errors.New("no leaderboard messages registered")

	// ErrMessageNotFound is returned by Publisher implementations when the
	// target message no longer exists.
	ErrMessageNotFound = errors.New("leaderboard message not found")

	// ErrChannelNotFound is returned by Publisher implementations when the
	// target channel no longer exists or is inaccessible.
	ErrChannelNotFound = errors.New("leaderboard channel not found")
)

// Content is one rendered leaderboard ready to be sent or edited.
type Content struct {
	GuildID string
	Title   string
	Body    string
}

// Publisher sends and edits leaderboard messages on the chat platform.
// Fetch and Edit report a missing message as ErrMessageNotFound.
type Publisher interface {
	Send(ctx context.Context, channelID string, content Content) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, content Content) error
	Fetch(ctx context.Context, channelID, messageID string) error
	Delete(ctx context.Context, channelID, messageID string) error
}

// Settings resolves the configured leaderboard channels for a guild.
type Settings interface {
	LeaderboardChannel(guildID, purpose string) (string, bool, error)
}

// Ranker produces the ranked entries for one guild and metric.
type Ranker interface {
	Top(guildID string, metric rank.Metric, n int) ([]rank.Entry, error)
}

// SyncState describes what a tick did to one leaderboard message.
type SyncState int

const (
	// Synced means the existing message was edited in place.
	Synced SyncState = iota
	// Reposted means the message was gone and a fresh one was sent.
	Reposted
	// Failed means the message could not be brought up to date.
	Failed
)

func (s SyncState) String() string {
	switch s {
	case Synced:
		return "synced"
	case Reposted:
		return "reposted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("syncstate(%d)", int(s))
}

// TickResult reports the outcome of one reconciliation pass for a guild.
type TickResult struct {
	Messages SyncState
	Voice    SyncState
}

// Reconciler keeps a guild's two leaderboard messages in line with the
// stored counters: editing them in place each tick and reposting any that
// has been deleted out from under it.
//
// All reconciliation for one guild is serialized: scheduled ticks arrive
// through the router's per-guild group, but Publish and ForceUpdate are
// driven by commands on their own goroutines, so a per-guild lock backs
// the same guarantee for them. Without it a manual update racing a
// scheduled tick would see the same deleted message twice and repost it
// twice, orphaning one copy.
type Reconciler struct {
	publisher   Publisher
	settings    Settings
	ranker      Ranker
	registry    *Registry
	displaySize int

	mu         sync.Mutex
	guildLocks map[string]*sync.Mutex
}

// NewReconciler wires a Reconciler from its collaborators.
func NewReconciler(publisher Publisher, settings Settings, ranker Ranker, registry *Registry, displaySize int) *Reconciler {
	if displaySize < 1 {
		displaySize = 10
	}
	return &Reconciler{
		publisher:   publisher,
		settings:    settings,
		ranker:      ranker,
		registry:    registry,
		displaySize: displaySize,
		guildLocks:  make(map[string]*sync.Mutex),
	}
}

// guildLock returns the mutex serializing Publish/Tick/ForceUpdate for a
// guild. Locks are never removed; one mutex per configured guild is cheap.
func (r *Reconciler) guildLock(guildID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.guildLocks[guildID]
	if !ok {
		l = &sync.Mutex{}
		r.guildLocks[guildID] = l
	}
	return l
}

const (
	messagesTitle = "🏆 Chat Leaderboard"
	voiceTitle    = "🔊 Voice Leaderboard"
)

func titleFor(metric rank.Metric) string {
	if metric == rank.MetricVoice {
		return voiceTitle
	}
	return messagesTitle
}

// render builds the Content for one metric of one guild.
func (r *Reconciler) render(guildID string, metric rank.Metric) (Content, error) {
	entries, err := r.ranker.Top(guildID, metric, r.displaySize)
	if err != nil {
		return Content{}, fmt.Errorf("rank %s for guild %s: %w", metric, guildID, err)
	}
	return Content{
		GuildID: guildID,
		Title:   titleFor(metric),
		Body:    rank.RenderBoard(entries, metric),
	}, nil
}

// Publish posts both leaderboard messages for a guild for the first time
// (or replaces an existing registration). Both channels must be configured
// before anything is sent. If the second send fails, the first message is
// deleted on a best-effort basis so the guild is not left half-published,
// and nothing is recorded.
func (r *Reconciler) Publish(ctx context.Context, guildID string) (GuildArtifacts, error) {
	lock := r.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	msgChannel, ok, err := r.settings.LeaderboardChannel(guildID, storage.PurposeMessageChannel)
	if err != nil {
		return GuildArtifacts{}, fmt.Errorf("load message channel setting: %w", err)
	}
	if !ok {
		return GuildArtifacts{}, ErrNotConfigured
	}
	voiceChannel, ok, err := r.settings.LeaderboardChannel(guildID, storage.PurposeVoiceChannel)
	if err != nil {
		return GuildArtifacts{}, fmt.Errorf("load voice channel setting: %w", err)
	}
	if !ok {
		return GuildArtifacts{}, ErrNotConfigured
	}

	msgContent, err := r.render(guildID, rank.MetricMessages)
	if err != nil {
		return GuildArtifacts{}, err
	}
	voiceContent, err := r.render(guildID, rank.MetricVoice)
	if err != nil {
		return GuildArtifacts{}, err
	}

	msgID, err := r.publisher.Send(ctx, msgChannel, msgContent)
	if err != nil {
		return GuildArtifacts{}, fmt.Errorf("post chat leaderboard: %w", err)
	}
	voiceID, err := r.publisher.Send(ctx, voiceChannel, voiceContent)
	if err != nil {
		if delErr := r.publisher.Delete(ctx, msgChannel, msgID); delErr != nil {
			log.ApplicationLogger().Warn("Could not clean up chat leaderboard after failed publish",
				"guild", guildID, "err", delErr)
		}
		return GuildArtifacts{}, fmt.Errorf("post voice leaderboard: %w", err)
	}

	arts := GuildArtifacts{
		Messages: Artifact{ChannelID: msgChannel, MessageID: msgID},
		Voice:    Artifact{ChannelID: voiceChannel, MessageID: voiceID},
	}
	if err := r.registry.Put(guildID, arts); err != nil {
		return GuildArtifacts{}, err
	}

	log.ApplicationLogger().Info("Leaderboards published",
		"guild", guildID, "chatChannel", msgChannel, "voiceChannel", voiceChannel)
	return arts, nil
}

// Tick reconciles both leaderboard messages for a guild. Each metric is
// handled independently: a failure on one never blocks the other.
func (r *Reconciler) Tick(ctx context.Context, guildID string) (TickResult, error) {
	lock := r.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	arts, ok := r.registry.Get(guildID)
	if !ok {
		return TickResult{Messages: Failed, Voice: Failed}, ErrNotPublished
	}

	result := TickResult{
		Messages: r.syncOne(ctx, guildID, rank.MetricMessages, arts.Messages),
		Voice:    r.syncOne(ctx, guildID, rank.MetricVoice, arts.Voice),
	}
	return result, nil
}

// ForceUpdate is Tick on demand, for the manual refresh command.
func (r *Reconciler) ForceUpdate(ctx context.Context, guildID string) (TickResult, error) {
	return r.Tick(ctx, guildID)
}

// syncOne edits one leaderboard message in place, reposting it if it has
// been deleted.
func (r *Reconciler) syncOne(ctx context.Context, guildID string, metric rank.Metric, art Artifact) SyncState {
	content, err := r.render(guildID, metric)
	if err != nil {
		log.ApplicationLogger().Error("Leaderboard render failed",
			"guild", guildID, "metric", metric.String(), "err", err)
		return Failed
	}

	err = r.publisher.Fetch(ctx, art.ChannelID, art.MessageID)
	if err == nil {
		// Edit can still race a deletion between fetch and edit; treat
		// that the same as a failed fetch.
		err = r.publisher.Edit(ctx, art.ChannelID, art.MessageID, content)
		if err == nil {
			return Synced
		}
	}
	if !errors.Is(err, ErrMessageNotFound) {
		log.ApplicationLogger().Error("Leaderboard sync failed",
			"guild", guildID, "metric", metric.String(), "err", err)
		return Failed
	}

	// Message was deleted out from under us; post a fresh one and record
	// its id so the next tick edits the replacement.
	newID, err := r.publisher.Send(ctx, art.ChannelID, content)
	if err != nil {
		log.ApplicationLogger().Error("Leaderboard repost failed",
			"guild", guildID, "metric", metric.String(), "err", err)
		return Failed
	}
	if err := r.registry.UpdateMessageID(guildID, metric, newID); err != nil {
		log.ApplicationLogger().Error("Could not record reposted leaderboard message",
			"guild", guildID, "metric", metric.String(), "err", err)
		return Failed
	}

	log.ApplicationLogger().Info("Leaderboard reposted",
		"guild", guildID, "metric", metric.String(), "message", newID)
	return Reposted
}

// Timestamp used by publishers for the "Updated" footer.
func UpdatedFooter(now time.Time) string {
	return "Updated • " + now.Format("Jan 02, 3:04 PM")
}
