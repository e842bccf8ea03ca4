package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/localchat/pkg/config"
	"mercator-hq/localchat/pkg/telemetry/logging"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid: %s\n", path)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			return printConfig(cmd, cfg)
		},
	}

	cmd.AddCommand(validate, show)
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	shown := *cfg
	shown.Upstream.APIKey = logging.RedactValue(cfg.Upstream.APIKey)

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(&shown); err != nil {
		return err
	}
	return enc.Close()
}
