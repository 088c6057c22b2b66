package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podcast-curator/internal/app"
	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent sync log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				logs, err := a.Store.ListSyncLogs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, logs)
				}
				if len(logs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sync logs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderSyncLogs(logs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func renderSyncLogs(logs []models.SyncLog) string {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		podcast := "-"
		if l.PodcastID != nil {
			podcast = strconv.FormatInt(*l.PodcastID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			l.JobType,
			string(l.Status),
			podcast,
			formatTime(l.StartedAt),
			formatTime(l.FinishedAt),
			l.Message,
		})
	}
	return renderTable(
		[]string{"ID", "Job", "Status", "Podcast", "Started", "Finished", "Message"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List data quality alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "all" {
				status = ""
			}
			if status != "" && status != models.AlertOpen && status != models.AlertResolved {
				return fmt.Errorf("--status must be open, resolved or all")
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				alerts, err := a.Store.ListAlerts(cmd.Context(), status)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, alerts)
				}
				if len(alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No alerts")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderAlerts(alerts))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", models.AlertOpen, "open, resolved or all")
	return cmd
}

func renderAlerts(alerts []models.QualityAlert) string {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.Title,
			string(a.Severity),
			a.Status,
			a.Body,
			a.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable([]string{"Title", "Severity", "Status", "Detail", "Updated"}, rows, nil)
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search PodcastIndex for feeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				feeds, err := a.Client.SearchByTerm(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, feeds)
				}
				if len(feeds) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No feeds found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderFeeds(feeds))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "max", "n", 20, "Maximum results")
	return cmd
}

func renderFeeds(feeds []podcastindex.Feed) string {
	rows := make([][]string, 0, len(feeds))
	for _, f := range feeds {
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.Title,
			f.Author,
			f.URL,
		})
	}
	return renderTable([]string{"Feed ID", "Title", "Author", "URL"}, rows, []columnAlignment{alignRight})
}
