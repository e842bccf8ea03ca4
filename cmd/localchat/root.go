package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/localchat/pkg/cli"
	"mercator-hq/localchat/pkg/config"
	"mercator-hq/localchat/pkg/telemetry/logging"
)

// rootOptions are the persistent flags shared by all commands.
type rootOptions struct {
	configFile string
	envFiles   []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "localchat",
		Short: "Local chat relay for vLLM and Ollama",
		Long: `Localchat lets a browser or terminal converse with a locally running,
OpenAI-compatible completion server while recording every conversation.

The relay selects the backend from the model identifier, streams tokens back
as Server-Sent Events and stores threads and messages in SQLite.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "config.yaml", "config file path")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env.local", ".env"}, "dotenv files loaded before the configuration; earlier files win")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newThreadsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cli.NewConfigError("flags", err.Error())
	})
	return cmd
}

// loadConfig reads .env files, the configuration file and environment
// overrides. It returns the configuration and the resolved file path, which
// is empty when no file is used.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if _, err := config.LoadEnvFiles(o.envFiles...); err != nil {
		return nil, "", cli.NewConfigError("env-file", err.Error())
	}

	explicit := cmd.Flags().Changed("config")
	path, err := config.ResolvePath(o.configFile, explicit)
	if err != nil {
		return nil, "", cli.NewConfigError("config", err.Error())
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, "", err
	}
	if o.logLevel != "" {
		if _, err := logging.ParseLevel(o.logLevel); err != nil {
			return nil, "", cli.NewConfigError("log-level", err.Error())
		}
		cfg.Telemetry.Logging.Level = o.logLevel
	}
	config.SetConfig(cfg)
	return cfg, path, nil
}

// setupLogging installs the configured slog default.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	return logging.Setup(logging.Config{
		Level:         cfg.Telemetry.Logging.Level,
		Format:        cfg.Telemetry.Logging.Format,
		AddSource:     cfg.Telemetry.Logging.AddSource,
		RedactSecrets: cfg.Telemetry.Logging.RedactSecrets,
		Writer:        os.Stderr,
	})
}
