package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"booksync/internal/parser"
	"booksync/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsDeleteCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		statuses []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			filter := make([]store.Status, 0, len(statuses))
			for _, s := range statuses {
				status := store.Status(strings.ToLower(strings.TrimSpace(s)))
				switch status {
				case store.StatusRunning, store.StatusFinished, store.StatusFailed:
					filter = append(filter, status)
				default:
					return fmt.Errorf("unknown status %q", s)
				}
			}
			runs, err := st.ListRuns(cmd.Context(), limit, filter...)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					displayTitle(run),
					string(run.Status),
					strconv.Itoa(run.MatchCount),
					formatTime(run.CreatedAt),
					formatDuration(run.Duration()),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Matches", "Created", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show runs with these statuses")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func displayTitle(run *store.Run) string {
	if t := strings.TrimSpace(run.Title); t != "" {
		return t
	}
	if run.BookSource != "" {
		return run.BookSource
	}
	return "-"
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var withMatches bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run (an unambiguous id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:         %s\n", run.ID)
			fmt.Fprintf(out, "Title:      %s\n", displayTitle(run))
			fmt.Fprintf(out, "Status:     %s\n", run.Status)
			fmt.Fprintf(out, "Book:       %s (%d quotes)\n", run.BookSource, run.QuoteCount)
			fmt.Fprintf(out, "Subtitles:  %s (%d lines)\n", run.SubtitleSource, run.SubtitleCount)
			fmt.Fprintf(out, "Matcher:    %s %v\n", run.Pipeline.Matcher, run.Pipeline.Params)
			fmt.Fprintf(out, "Pipeline:   pre=%s post=%s format=%s\n",
				joinOrDash(run.Pipeline.Preprocessors), joinOrDash(run.Pipeline.Postprocessors), run.Pipeline.Formatter)
			fmt.Fprintf(out, "Matches:    %d\n", run.MatchCount)
			fmt.Fprintf(out, "Created:    %s\n", formatTime(run.CreatedAt))
			fmt.Fprintf(out, "Duration:   %s\n", formatDuration(run.Duration()))
			if run.ResultRef != "" {
				fmt.Fprintf(out, "Result:     %s\n", run.ResultRef)
			}
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:      %s (%s)\n", run.ErrorMessage, run.ErrorKind)
			}
			if !withMatches {
				return nil
			}
			matches, err := st.Matches(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintln(out, "No stored matches (use the store formatter to record them)")
				return nil
			}
			rows := make([][]string, 0, len(matches))
			for _, m := range matches {
				rows = append(rows, []string{
					strconv.Itoa(m.QuoteIndex),
					strconv.Itoa(m.SubtitleIndex),
					parser.FormatTimecode(m.From),
					strconv.FormatFloat(m.Score, 'f', 3, 64),
					strconv.Itoa(m.Scene),
					truncate(m.QuoteText, 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Quote", "Line", "From", "Score", "Scene", "Text"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&withMatches, "matches", false, "Also list stored matches")
	return cmd
}

func newRunsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a run and its stored matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run.Status == store.StatusRunning {
				return fmt.Errorf("run %s is still running", shortID(run.ID))
			}
			if err := st.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", shortID(run.ID))
			return nil
		},
	}
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished and failed runs older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			st, err := ctx.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			n, err := st.PruneFinished(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Age in days")
	return cmd
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
