package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/small-frappuccino/activityboard/pkg/log"
	"github.com/small-frappuccino/activityboard/pkg/task"
)

// taskTypeTick is the router task type for one guild reconciliation pass.
const taskTypeTick = "board.tick"

// GuildChecker reports whether the bot is still a member of a guild.
type GuildChecker interface {
	GuildExists(guildID string) bool
}

// Service drives periodic reconciliation: every interval it walks the
// registry and dispatches one tick task per guild through the router.
// Per-guild tasks share a group key, so a slow guild's ticks serialize
// against each other instead of piling up, and an idempotency key skips
// re-dispatch while a tick is still running. Guilds never block one
// another.
type Service struct {
	reconciler *Reconciler
	registry   *Registry
	router     *task.Router
	guilds     GuildChecker
	interval   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewService wires the periodic driver and registers its tick handler on
// the router. guilds may be nil, in which case every registered guild is
// visited.
func NewService(reconciler *Reconciler, registry *Registry, router *task.Router, guilds GuildChecker, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s := &Service{
		reconciler: reconciler,
		registry:   registry,
		router:     router,
		guilds:     guilds,
		interval:   interval,
		done:       make(chan struct{}),
	}
	router.RegisterHandler(taskTypeTick, s.handleTick)
	return s
}

// Start launches the tick loop. The first pass runs immediately so a
// restart does not wait a full interval before refreshing stale boards.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	log.ApplicationLogger().Info("Leaderboard update loop started", "interval", s.interval)
}

// Stop halts the loop and waits for it to exit. In-flight tick tasks are
// drained by the router's own shutdown. A no-op when Start never ran.
func (s *Service) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.dispatchAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchAll(ctx)
		}
	}
}

func (s *Service) dispatchAll(ctx context.Context) {
	for _, guildID := range s.registry.GuildIDs() {
		if s.guilds != nil && !s.guilds.GuildExists(guildID) {
			log.ApplicationLogger().Debug("Skipping guild the bot left", "guild", guildID)
			continue
		}
		t := task.Task{
			Type:    taskTypeTick,
			Payload: guildID,
			Options: task.Options{
				GroupKey:       guildID,
				IdempotencyKey: "tick:" + guildID,
				MaxAttempts:    1,
			},
		}
		if err := s.router.Dispatch(ctx, t); err != nil {
			switch {
			case errors.Is(err, task.ErrDuplicateTask):
				log.ApplicationLogger().Debug("Tick still running; skipping", "guild", guildID)
			case errors.Is(err, task.ErrRouterClosed):
				return
			default:
				log.ApplicationLogger().Error("Could not dispatch leaderboard tick",
					"guild", guildID, "err", err)
			}
		}
	}
}

func (s *Service) handleTick(ctx context.Context, payload any) error {
	guildID, ok := payload.(string)
	if !ok {
		return errors.New("tick payload must be a guild id")
	}

	result, err := s.reconciler.Tick(ctx, guildID)
	if err != nil {
		if errors.Is(err, ErrNotPublished) {
			// Registry changed between dispatch and execution.
			return nil
		}
		return err
	}

	if result.Messages == Failed || result.Voice == Failed {
		log.ApplicationLogger().Warn("Leaderboard tick incomplete",
			"guild", guildID, "chat", result.Messages.String(), "voice", result.Voice.String())
	}
	return nil
}
