package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/cli"
	"mercator-hq/localchat/pkg/relay"
	"mercator-hq/localchat/pkg/server"
	"mercator-hq/localchat/pkg/store/backup"
	"mercator-hq/localchat/pkg/telemetry/metrics"
	"mercator-hq/localchat/pkg/telemetry/tracing"
)

type serveOptions struct {
	listenAddress string
	dryRun        bool
	noReload      bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Long: `Start the relay server with the specified configuration.

The server exposes POST /api/chat, which streams completions from the selected
backend as Server-Sent Events, plus the thread, storage and settings APIs used
by the web UI.

Examples:
  # Start with default config
  localchat serve

  # Override listen address
  localchat serve --listen 0.0.0.0:3000

  # Validate config without starting server
  localchat serve --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config without starting server")
	cmd.Flags().BoolVar(&opts.noReload, "no-reload", false, "do not watch the config file for changes")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, path, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer st.Close()

	client := newUpstreamClient(cfg)
	defer client.CloseIdleConnections()

	relayOpts, err := relay.OptionsFromConfig(cfg)
	if err != nil {
		return cli.NewConfigError("backends", err.Error())
	}
	controller, err := relay.NewController(st, client, relayOpts, collector)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	deps := server.Deps{
		Store:   st,
		Relay:   controller,
		Metrics: collector,
		Health:  newHealthChecker(st, client, func() *backend.Selector { return controller.Options().Selector }),
	}
	if cfg.Storage.Backup.Schedule != "" {
		deps.Backups = backup.NewScheduler(newBackuper(st, cfg))
	}
	if path != "" && !opts.noReload {
		deps.ConfigPath = path
	}

	logger.Info("localchat starting",
		"version", Version,
		"config", path,
		"storage", cfg.Storage.Backend,
		"default_backend", cfg.Backends.Default,
		"model", cfg.Generation.Model,
		"tracing", tracer.Enabled(),
		"metrics", cfg.Telemetry.Metrics.Enabled,
	)
	slog.Debug("backend endpoints",
		"vllm", cfg.Backends.VLLM.BaseURL,
		"ollama", cfg.Backends.Ollama.BaseURL,
	)

	srv := server.New(cfg, deps, Version)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
