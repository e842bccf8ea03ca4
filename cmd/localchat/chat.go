package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/cli"
	"mercator-hq/localchat/pkg/relay"
)

type chatOptions struct {
	model   string
	system  string
	backend string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the local model in the terminal",
		Long: `Start an interactive chat against the configured backends.

History lives in memory only. Type 'new' to start over and 'exit' to quit.
Ctrl-C while a reply is streaming stops that reply.

Examples:
  localchat chat
  localchat chat --model llama3:8b
  localchat chat --backend vllm --system "Answer in one sentence."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model identifier (default from config)")
	cmd.Flags().StringVarP(&opts.system, "system", "s", "", "system prompt (default from config)")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "force a backend: vllm or ollama")
	return cmd
}

func runChat(cmd *cobra.Command, root *rootOptions, opts *chatOptions) error {
	cfg, _, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	var kind backend.Kind
	if opts.backend != "" {
		kind, err = backend.ParseKind(opts.backend)
		if err != nil {
			return cli.NewConfigError("backend", err.Error())
		}
	}

	relayOpts, err := relay.OptionsFromConfig(cfg)
	if err != nil {
		return cli.NewConfigError("backends", err.Error())
	}

	client := newUpstreamClient(cfg)
	defer client.CloseIdleConnections()

	term := cli.NewTerminal(cfg.CLI.HistoryFile)
	defer term.Close()

	chat, err := cli.NewChat(client, cli.ChatOptions{
		Relay:   relayOpts,
		Backend: kind,
		Model:   opts.model,
		System:  opts.system,
		Prompt:  cfg.CLI.Prompt,
	}, term, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	chat.Banner()
	return chat.Run(cmd.Context())
}
