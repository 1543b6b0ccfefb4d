package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevRickLin/feishu-meet-bot/internal/api"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meet-bot/internal/conf"
	"github.com/DevRickLin/feishu-meet-bot/internal/data"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-meet-bot/internal/server"
	"github.com/DevRickLin/feishu-meet-bot/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		conf.NewLogger("", "info", os.Stderr).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.Logger(os.Stdout)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateFeishu(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	location, _ := cfg.Commands.Location()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, data.Options{
		PrefixDriver: cfg.Store.Driver,
		PrefixDir:    cfg.Store.Dir,
		PrefixDBPath: cfg.Store.DBPath,
		Admins:       cfg.Store.Admins,
		RequireOwner: cfg.Store.RequireOwner,
	}, log)
	if err != nil {
		log.Error("failed to create repositories", "error", err)
		os.Exit(1)
	}
	log.Info("prefix store ready", "driver", cfg.Store.Driver, "dir", cfg.Store.Dir)

	// Initialize usecase layer
	guestCfg := usecase.DefaultGuestConfig()
	guestCfg.LookupTimeout = cfg.Commands.GuestLookupTimeout
	guestCfg.WorkspaceDomain = cfg.Commands.WorkspaceDomain

	composerCfg := usecase.DefaultComposerConfig()
	composerCfg.MaxAttempts = cfg.Commands.CalendarMaxAttempts

	ucs := biz.NewUsecases(repos.Prefix, repos.Directory, repos.Calendar, guestCfg, composerCfg, log)

	// Initialize service layer
	router := service.NewCommandRouter(ucs.Composer, repos.Prefix, repos.Access, service.RouterConfig{
		MeetingCommand:  cfg.Commands.MeetingCommand,
		PrefixCommand:   cfg.Commands.PrefixCommand,
		WorkspaceDomain: cfg.Commands.WorkspaceDomain,
		Location:        location,
		Messages:        cfg.Messages,
	}, log)

	pool := service.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize, log)
	pool.Start(context.Background())
	dispatcher := service.NewDispatcher(router, pool, repos.Reply, cfg.Messages, log)

	// Initialize HTTP API server for meeting-mcp and operators
	apiServer := api.NewServer(repos.Prefix, dispatcher, cfg.APIPort, log)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("api server error", "error", err)
		}
	}()

	srv := server.NewFeishuServer(feishuClient, dispatcher, log)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting meeting bot",
			"meeting_command", cfg.Commands.MeetingCommand,
			"prefix_command", cfg.Commands.PrefixCommand,
			"api_port", cfg.APIPort,
		)
		errCh <- srv.Start()
	}()

	exitCode := 0
	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	srv.Stop()
	if err := apiServer.Stop(ctx); err != nil {
		log.Warn("api server shutdown", "error", err)
	}
	if err := pool.Stop(ctx); err != nil {
		log.Warn("worker pool did not drain", "error", err)
	}
	if err := repos.Close(); err != nil {
		log.Warn("close repositories", "error", err)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
