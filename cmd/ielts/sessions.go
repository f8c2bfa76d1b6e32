package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/storage"
)

const fullIDLength = 36

func newStatsCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show practice statistics and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, false)
			if err != nil {
				return err
			}
			st, err := m.Statistics(ctx)
			if err != nil {
				return err
			}
			rate, err := m.ImprovementRate(ctx, days)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), st, rate, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window for the improvement rate")
	return cmd
}

func newSessionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"history"},
		Short:   "Browse and manage practice history",
	}
	cmd.AddCommand(
		newSessionsListCmd(c),
		newSessionsShowCmd(c),
		newSessionsCompareCmd(c),
		newSessionsDeleteCmd(c),
		newSessionsCleanupCmd(c),
		newSessionsInfoCmd(c),
	)
	return cmd
}

func newSessionsListCmd(c *cli) *cobra.Command {
	var (
		limit    int
		statuses []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter := make([]domain.SessionStatus, 0, len(statuses))
			for _, s := range statuses {
				st := domain.SessionStatus(s)
				if !st.IsValid() {
					return fmt.Errorf("unknown status %q", s)
				}
				filter = append(filter, st)
			}
			m, err := c.manager(ctx, false)
			if err != nil {
				return err
			}
			sessions, err := m.RecentSessions(ctx, limit, filter...)
			if err != nil {
				return err
			}
			renderSessionList(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of sessions")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only these statuses (repeatable)")
	return cmd
}

func newSessionsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session with its response and assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, false)
			if err != nil {
				return err
			}
			id, err := resolveSessionID(ctx, c.store, args[0])
			if err != nil {
				return err
			}
			sess, err := m.GetSession(ctx, id)
			if err != nil {
				return err
			}
			renderSessionDetail(cmd.OutOrStdout(), sess, terminalWidth())
			return nil
		},
	}
}

func newSessionsCompareCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <before-id> <after-id>",
		Short: "Compare the scores of two assessed sessions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, false)
			if err != nil {
				return err
			}
			before, err := resolveSessionID(ctx, c.store, args[0])
			if err != nil {
				return err
			}
			after, err := resolveSessionID(ctx, c.store, args[1])
			if err != nil {
				return err
			}
			cmp, err := m.CompareSessions(ctx, before, after)
			if err != nil {
				return err
			}
			renderComparison(cmd.OutOrStdout(), cmp)
			return nil
		},
	}
}

func newSessionsDeleteCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, false)
			if err != nil {
				return err
			}
			id, err := resolveSessionID(ctx, c.store, args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd, fmt.Sprintf("Delete session %s?", shortID(id))) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			deleted, err := m.DeleteSession(ctx, id)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("Deleted "+id))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newSessionsCleanupCmd(c *cli) *cobra.Command {
	var (
		days   int
		vacuum bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old cancelled and failed sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, false)
			if err != nil {
				return err
			}
			n, err := m.CleanupOldSessions(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s) older than %d days.\n", n, days)
			if vacuum {
				if err := c.store.Vacuum(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database compacted.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "remove sessions older than this")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "compact the database afterwards")
	return cmd
}

func newSessionsInfoCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			info, err := store.Info(cmd.Context())
			if err != nil {
				return err
			}
			renderStoreInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

var errAmbiguousID = errors.New("ambiguous session id")

// resolveSessionID expands a unique id prefix, as printed by the list
// command, into the full id.
func resolveSessionID(ctx context.Context, store *storage.Store, arg string) (string, error) {
	if len(arg) == fullIDLength {
		return arg, nil
	}
	all, err := store.AllSessions(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, s := range all {
		if strings.HasPrefix(s.SessionID, arg) {
			matches = append(matches, s.SessionID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", domain.ErrSessionNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %d sessions", errAmbiguousID, arg, len(matches))
	}
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
