package main

import (
	"os"

	"github.com/spf13/cobra"

	"booksync/internal/coordinator"
	"booksync/internal/worker"
)

// newWorkerCommand is the child side of isolated runs: a job arrives on
// stdin and events leave on stdout, one JSON document per line.
func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Execute one run for a parent booksync process",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// The parent holds the data directory lock for the whole run.
			st, err := ctx.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			coord := coordinator.New(cfg, ctx.loggerFor(), coordinator.WithStore(st))
			return worker.Serve(cmd.Context(), coord, os.Stdin, os.Stdout)
		},
	}
}
