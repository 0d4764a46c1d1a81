package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mudlink/mudlink/internal/config"
	"github.com/mudlink/mudlink/internal/discord"
	"github.com/mudlink/mudlink/internal/gateway"
	"github.com/mudlink/mudlink/internal/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy daemon",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	// Setup structured logging
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := cfg.LogLevel()
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.Watch(ctx, cfg, cfgPath); err != nil {
		slog.Warn("config watch disabled", "error", err)
	}

	webhooks := discord.NewSender()
	sessions := session.NewStore(webhooks)
	go sessions.Run(ctx)

	server := gateway.NewServer(cfg, sessions, webhooks, Version)

	slog.Info("mudlink starting", "version", Version)
	if err := server.Start(ctx); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
	slog.Info("mudlink stopped")
}
