package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"booksync/internal/evaluation"
	"booksync/internal/formatter"
)

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate RESULT TRUTH",
		Short: "Score a result against a ground-truth match file",
		Long: "RESULT is a JSON result document or run:<id> for matches recorded by the store formatter.\n" +
			"TRUTH is a JSON document with the same layout; only the match indices are read.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.loadPairs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			truth, err := ctx.loadPairs(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			rep := evaluation.Compare(result, truth)
			if asJSON {
				return writeJSON(cmd, rep)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"True positives", strconv.Itoa(rep.TruePositives)},
					{"False positives", strconv.Itoa(rep.FalsePositives)},
					{"False negatives", strconv.Itoa(rep.FalseNegatives)},
					{"Precision", formatRatio(rep.Precision)},
					{"Recall", formatRatio(rep.Recall)},
					{"F1", formatRatio(rep.F1)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			if verbose {
				fmt.Fprintf(out, "Spurious: %s\n", joinPairs(rep.Spurious))
				fmt.Fprintf(out, "Missed:   %s\n", joinPairs(rep.Missed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List spurious and missed pairs")
	return cmd
}

func (c *commandContext) loadPairs(ctx context.Context, ref string) ([]evaluation.Pair, error) {
	if id, ok := strings.CutPrefix(ref, "run:"); ok {
		st, err := c.openStore(ctx, false)
		if err != nil {
			return nil, err
		}
		run, err := st.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		matches, err := st.Matches(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		pairs := make([]evaluation.Pair, len(matches))
		for i, m := range matches {
			pairs[i] = evaluation.Pair{Quote: m.QuoteIndex, Subtitle: m.SubtitleIndex}
		}
		return pairs, nil
	}

	path, err := resolveInput(ref)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	doc, err := formatter.ReadDocument(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return evaluation.PairsFromDocument(doc), nil
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func joinPairs(pairs []evaluation.Pair) string {
	if len(pairs) == 0 {
		return "-"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
