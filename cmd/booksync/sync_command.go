package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var (
		flags    pipelineFlags
		title    string
		isolated bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "sync BOOK SUBTITLES",
		Short: "Align one book with one subtitle transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pipeline := flags.apply(cmd, cfg.Pipeline)
			if err := pipeline.Validate(); err != nil {
				return err
			}
			book, err := resolveInput(args[0])
			if err != nil {
				return err
			}
			subtitles, err := resolveInput(args[1])
			if err != nil {
				return err
			}
			if isolated {
				// The parent still owns the data directory while the child runs.
				if _, err := ctx.openStore(cmd.Context(), true); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			sink := newProgressPrinter(cmd.ErrOrStderr(), out, "")
			if asJSON {
				sink = newProgressPrinter(cmd.ErrOrStderr(), nil, "")
			}
			res, runErr := ctx.execute(cmd.Context(), runSpec{
				Title:     title,
				Book:      book,
				Subtitles: subtitles,
				Pipeline:  pipeline,
			}, sink, isolated || cfg.Worker.Isolated)

			if asJSON {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Run %s finished with %d matches\n", shortID(res.RunID), res.Matches)
			if res.Ref != "" && res.Ref != "stream" {
				fmt.Fprintln(out, res.Ref)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "Title recorded with the run (defaults to the book title)")
	cmd.Flags().BoolVar(&isolated, "isolated", false, "Run in a separate worker process")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run result as JSON")
	return cmd
}
