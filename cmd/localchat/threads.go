package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/localchat/pkg/cli"
	"mercator-hq/localchat/pkg/config"
	"mercator-hq/localchat/pkg/store"
)

func newThreadsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Manage stored threads offline",
		Long: `Operate on the configured thread store directly, without a running server.

Export and import use the same JSON document as the web UI's storage page.
Importing is idempotent: threads and messages that already exist are skipped.`,
	}

	cmd.AddCommand(
		newThreadsListCmd(root),
		newThreadsExportCmd(root),
		newThreadsImportCmd(root),
		newThreadsBackupCmd(root),
	)
	return cmd
}

// withStore loads configuration, opens the store and runs fn.
func withStore(cmd *cobra.Command, root *rootOptions, fn func(cfg *config.Config, st store.Store) error) error {
	cfg, _, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	defer st.Close()

	if err := fn(cfg, st); err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	return nil
}

func newThreadsListCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			return withStore(cmd, root, func(_ *config.Config, st store.Store) error {
				threads, err := st.ListThreads(cmd.Context())
				if err != nil {
					return err
				}
				return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), threads)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(cli.FormatText), "output format: text, json, csv")
	return cmd
}

func newThreadsExportCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all threads and messages as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(_ *config.Config, st store.Store) error {
				snap, err := st.Export(cmd.Context())
				if err != nil {
					return err
				}
				if file == "" || file == "-" {
					return store.WriteSnapshot(cmd.OutOrStdout(), snap)
				}
				if err := store.WriteSnapshotFile(file, snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d threads, %d messages to %s\n",
					len(snap.Threads), snap.MessageCount(), file)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "output file, - for stdout")
	return cmd
}

func newThreadsImportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import threads from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(_ *config.Config, st store.Store) error {
				snap, err := readSnapshotArg(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				res, err := st.Import(cmd.Context(), snap)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d threads: %d messages inserted, %d skipped\n",
					res.Threads, res.MessagesInserted, res.MessagesSkipped)
				return nil
			})
		},
	}
	return cmd
}

func readSnapshotArg(stdin io.Reader, arg string) (*store.Snapshot, error) {
	if arg == "-" {
		return store.ReadSnapshot(stdin)
	}
	return store.ReadSnapshotFile(arg)
}

func newThreadsBackupCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a backup snapshot now",
		Long: `Write one snapshot file to storage.backup.dir and prune old files, exactly
as the scheduled backup of the server does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(cfg *config.Config, st store.Store) error {
				path, err := newBackuper(st, cfg).Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Backup written to %s\n", path)
				return nil
			})
		},
	}
	return cmd
}
