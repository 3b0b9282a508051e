package app

import (
	"context"
	"fmt"
	"time"

	"github.com/small-frappuccino/activityboard/pkg/activity"
	"github.com/small-frappuccino/activityboard/pkg/board"
	"github.com/small-frappuccino/activityboard/pkg/config"
	"github.com/small-frappuccino/activityboard/pkg/control"
	"github.com/small-frappuccino/activityboard/pkg/discord"
	"github.com/small-frappuccino/activityboard/pkg/discord/commands"
	"github.com/small-frappuccino/activityboard/pkg/discord/gateway"
	"github.com/small-frappuccino/activityboard/pkg/discord/session"
	"github.com/small-frappuccino/activityboard/pkg/log"
	"github.com/small-frappuccino/activityboard/pkg/rank"
	"github.com/small-frappuccino/activityboard/pkg/storage"
	"github.com/small-frappuccino/activityboard/pkg/task"
	"github.com/small-frappuccino/activityboard/pkg/util"
)

// AppName affects config, data and log paths.
const AppName = "activityboard"

// TokenEnv is the environment variable holding the bot token. It is read
// from the process environment first; if empty, the $HOME/.local/bin/.env
// fallback file is loaded and the variable re-checked.
const TokenEnv = "ACTIVITYBOARD_BOT_TOKEN"

// status adapts live components to the control server's report.
type status struct {
	registry *board.Registry
	tracker  *activity.SessionTracker
}

func (s *status) TrackedGuilds() int     { return len(s.registry.GuildIDs()) }
func (s *status) OpenVoiceSessions() int { return s.tracker.OpenCount() }

// Run bootstraps the bot and blocks until an interrupt arrives, then
// shuts everything down in reverse dependency order.
func Run(configFile string) error {
	started := time.Now()
	util.SetAppName(AppName)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := log.SetupLogger(cfg.LogDir); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer log.Close()

	token, err := util.LoadEnvWithLocalBinFallback(TokenEnv)
	if err != nil {
		return fmt.Errorf("resolve bot token: %w", err)
	}

	store := storage.NewStore(cfg.DatabasePath)
	if err := store.Init(); err != nil {
		return fmt.Errorf("open stats database: %w", err)
	}
	defer store.Close()

	registry := board.NewRegistry(cfg.RegistryPath)
	if err := registry.Load(); err != nil {
		return fmt.Errorf("load leaderboard registry: %w", err)
	}

	sess, err := session.New(token)
	if err != nil {
		return err
	}
	defer sess.Close()

	tracker := activity.NewSessionTracker()
	recorder := activity.NewRecorder(store, tracker)
	gateway.Attach(sess, recorder)

	directory := discord.NewDirectory(sess)
	engine := rank.NewEngine(store, directory, cfg.OverFetchFactor)
	publisher := discord.NewPublisher(sess)
	reconciler := board.NewReconciler(publisher, store, engine, registry, cfg.DisplaySize)

	routerCfg := task.Defaults()
	routerCfg.MaxWorkers = cfg.MaxConcurrentTicks
	router := task.NewRouter(routerCfg)

	svc := board.NewService(reconciler, registry, router, directory, cfg.UpdateInterval)
	svc.Start(context.Background())

	cmdHandler := commands.NewHandler(sess, store, reconciler, directory)
	if err := cmdHandler.Setup(); err != nil {
		svc.Stop()
		router.Close()
		return err
	}

	ctrl := control.NewServer(cfg.ControlAddr, &status{registry: registry, tracker: tracker})
	if err := ctrl.Start(); err != nil {
		log.ApplicationLogger().Warn("Control server disabled", "err", err)
		ctrl = nil
	}

	log.ApplicationLogger().Info("Bot started",
		"version", Version(), "startup", time.Since(started).String())

	util.WaitForInterrupt()
	log.ApplicationLogger().Info("Shutting down")

	svc.Stop()
	router.Close()
	cmdHandler.Shutdown()
	if ctrl != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctrl.Stop(shutdownCtx); err != nil {
			log.ApplicationLogger().Warn("Control server stop", "err", err)
		}
	}

	log.ApplicationLogger().Info("Shutdown complete")
	return nil
}
