package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-ielts/internal/storage"
)

func newMaintenanceCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Back up and restore the session database",
	}
	cmd.AddCommand(newBackupCmd(c), newRestoreCmd(c))
	return cmd
}

func newBackupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [path]",
		Short: "Copy the database to path (default: a timestamped file in backups/)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			dest := storage.DefaultBackupPath(c.app.DatabasePath, time.Now())
			if len(args) == 1 {
				dest = args[0]
			}
			if err := store.Backup(cmd.Context(), dest); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("Backup written to "+dest))
			return nil
		},
	}
}

func newRestoreCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Replace the database with a backup",
		Long: "Replaces the session database with the given backup. The current database is\n" +
			"backed up first, so a restore can itself be undone.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.loadConfig()
			if err != nil {
				return err
			}
			src := args[0]
			if _, err := os.Stat(src); err != nil {
				return fmt.Errorf("backup %s: %w", src, err)
			}
			if !yes && !confirm(cmd, "Replace all sessions with the contents of "+src+"?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			if _, err := os.Stat(app.DatabasePath); err == nil {
				store, err := c.openStore()
				if err != nil {
					return err
				}
				safety := storage.DefaultBackupPath(app.DatabasePath, time.Now())
				if err := store.Backup(ctx, safety); err != nil {
					return fmt.Errorf("back up current database: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), gray("Current database saved to "+safety))
			}
			// The store must be closed before its file is replaced.
			if c.store != nil {
				if err := c.store.Close(); err != nil {
					return fmt.Errorf("close database: %w", err)
				}
				c.store = nil
			}

			n, err := storage.Restore(ctx, src, app.DatabasePath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("Restored %d session(s) from %s", n, src)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}
