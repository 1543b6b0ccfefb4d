package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevRickLin/feishu-meet-bot/internal/conf"
	"github.com/DevRickLin/feishu-meet-bot/internal/mcp"
)

func main() {
	// stdout carries the MCP protocol, so logs go to stderr
	cfg, err := conf.LoadMCPFromEnv()
	if err != nil {
		conf.NewLogger("", "info", os.Stderr).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := conf.NewLogger("", cfg.LogLevel, os.Stderr).With("component", "meeting_mcp")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := mcp.NewServer(mcp.NewClient(cfg.APIURL), mcp.Options{
		MeetingCommand: cfg.MeetingCommand,
		PrefixCommand:  cfg.PrefixCommand,
		RequesterID:    cfg.RequesterID,
		ChannelID:      cfg.ChannelID,
	})

	log.Info("starting meeting MCP server", "api_url", cfg.APIURL)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
