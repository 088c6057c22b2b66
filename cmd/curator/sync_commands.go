package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podcast-curator/internal/app"
	"podcast-curator/internal/queue"
	"podcast-curator/internal/syncer"
	"podcast-curator/internal/worker"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var queued bool
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one podcast by feed id, podcast guid or feed URL",
	}
	syncCmd.PersistentFlags().BoolVar(&queued, "queue", false, "Queue the job for the worker instead of running it here")

	syncCmd.AddCommand(&cobra.Command{
		Use:   "feed <feed-id>",
		Short: "Sync a podcast by PodcastIndex feed id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || feedID <= 0 {
				return fmt.Errorf("invalid feed id %q", args[0])
			}
			return ctx.syncFeed(cmd, syncer.RefByID(feedID), queued)
		},
	})
	syncCmd.AddCommand(&cobra.Command{
		Use:   "guid <podcast-guid>",
		Short: "Sync a podcast by podcast:guid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.syncFeed(cmd, syncer.RefByGUID(args[0]), queued)
		},
	})
	syncCmd.AddCommand(&cobra.Command{
		Use:   "url <feed-url>",
		Short: "Sync a podcast by its feed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.syncFeed(cmd, syncer.RefByURL(args[0]), queued)
		},
	})

	return syncCmd
}

func (c *commandContext) syncFeed(cmd *cobra.Command, ref syncer.FeedRef, queued bool) error {
	return c.withApp(cmd.Context(), func(a *app.App) error {
		if queued {
			d, err := a.Dispatcher.SyncFeed(cmd.Context(), ref, nil)
			return c.printDispatched(cmd, d, err)
		}
		res, err := a.Runner.SyncFeed(cmd.Context(), ref, worker.Invocation{})
		return printRun(c, cmd, res, err, func(r *syncer.SyncResult) string { return r.Message() })
	})
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var queued bool
	cmd := &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Register a feed URL with PodcastIndex and sync it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if queued {
					d, err := a.Dispatcher.AddFeed(cmd.Context(), args[0])
					return ctx.printDispatched(cmd, d, err)
				}
				res, err := a.Runner.AddFeed(cmd.Context(), args[0], worker.Invocation{})
				return printRun(ctx, cmd, res, err, func(r *syncer.SyncResult) string { return r.Message() })
			})
		},
	}
	cmd.Flags().BoolVar(&queued, "queue", false, "Queue the job for the worker instead of running it here")
	return cmd
}

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var (
		queued bool
		limit  int
		since  int64
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Sync every feed with recently published episodes",
		Long:  "Sync every feed with recently published episodes. Without --since the sweep resumes from the stored cursor.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || since < 0 {
				return fmt.Errorf("--max and --since must not be negative")
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if queued {
					d, err := a.Dispatcher.SyncRecent(cmd.Context(), limit, since)
					return ctx.printDispatched(cmd, d, err)
				}
				res, err := a.Runner.SyncRecent(cmd.Context(), limit, since, worker.Invocation{})
				return printRun(ctx, cmd, res, err, func(s *syncer.RecentSummary) string { return s.String() })
			})
		},
	}
	cmd.Flags().BoolVar(&queued, "queue", false, "Queue the job for the worker instead of running it here")
	cmd.Flags().IntVar(&limit, "max", 0, "Maximum recent items to fetch (default from SYNC_RECENT_MAX)")
	cmd.Flags().Int64Var(&since, "since", 0, "Unix timestamp to sweep from")
	return cmd
}

func newSyncAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Queue a sync of every live podcast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				d, err := a.Dispatcher.SyncAll(cmd.Context())
				return ctx.printDispatched(cmd, d, err)
			})
		},
	}
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Run the data quality checks and update alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Runner.EvaluateQuality(cmd.Context(), worker.Invocation{})
				if err != nil || ctx.jsonOutput {
					return printRun(ctx, cmd, res, err, nil)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (sync log %d)\n", res.Result, res.SyncLogID)
				if len(res.Result.Raised) > 0 {
					fmt.Fprint(cmd.OutOrStdout(), renderAlerts(res.Result.Raised))
				}
				return nil
			})
		},
	}
}

// printRun reports a runner result. Failures still name the closed ledger row.
func printRun[T any](c *commandContext, cmd *cobra.Command, res *worker.RunResult[T], err error, summary func(T) string) error {
	if err != nil {
		if res != nil && res.SyncLogID != 0 {
			return fmt.Errorf("%w (sync log %d)", err, res.SyncLogID)
		}
		return err
	}
	if c.jsonOutput || summary == nil {
		return writeJSON(cmd, res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (sync log %d)\n", summary(res.Result), res.SyncLogID)
	return nil
}

func (c *commandContext) printDispatched(cmd *cobra.Command, d *queue.Dispatched, err error) error {
	if err != nil {
		return err
	}
	if c.jsonOutput {
		return writeJSON(cmd, d)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s as task %s (sync log %d)\n", d.Type, d.TaskID, d.SyncLogID)
	return nil
}

