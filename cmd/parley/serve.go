package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/parley/internal/agent"
	"github.com/haasonsaas/parley/internal/config"
	"github.com/haasonsaas/parley/internal/gateway"
	"github.com/haasonsaas/parley/internal/media"
	"github.com/haasonsaas/parley/internal/observability"
	"github.com/haasonsaas/parley/internal/providers/google"
	"github.com/haasonsaas/parley/internal/sessions"
	"github.com/haasonsaas/parley/internal/tools"
)

// buildServeCmd creates the "serve" command that starts the gateway server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Long: `Start the gateway server.

The server will:
1. Load configuration from the specified file (credentials fall back to
   environment variables when no file is given)
2. Build the tool registry from the configured capabilities
3. Serve the websocket channel on /ws, metrics on /metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := google.New(ctx, google.Config{
		APIKey:          cfg.LLM.APIKey,
		ChatModel:       cfg.LLM.ChatModel,
		VisionModel:     cfg.LLM.VisionModel,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	registry := tools.Build(cfg.Tools, logger)
	resolver := media.NewResolver()
	logger.Info("tool registry built", "tools", registry.Len())

	store := sessions.NewStore(sessions.StoreConfig{
		Factory: func() *agent.Engine {
			return agent.NewEngine(agent.EngineConfig{
				Provider:      provider,
				Registry:      registry,
				Resolver:      resolver,
				Logger:        logger,
				MaxToolRounds: cfg.LLM.MaxToolRounds,
				SendTimeout:   cfg.LLM.SendTimeout,
				Metrics:       metrics,
			})
		},
		Logger:        logger,
		IdleTimeout:   cfg.Sessions.IdleTimeout,
		SweepInterval: cfg.Sessions.SweepInterval,
		Metrics:       metrics,
	})
	store.Start()
	defer store.Close()

	server := gateway.NewServer(gateway.ServerConfig{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Store:          store,
		Logger:         logger,
		Metrics:        metrics,
	})
	return server.Run(ctx)
}
