package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"booksync/internal/config"
	"booksync/internal/logging"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/taskbuffer"
)

// batchManifest lists the pairs of one batch:
//
//	[[run]]
//	title = "Chapter 1"
//	book = "ch1/book.json"
//	subtitles = "ch1/subtitles.json"
//
// Relative paths are resolved against the manifest's directory.
type batchManifest struct {
	Runs []batchEntry `toml:"run"`
}

type batchEntry struct {
	Title     string `toml:"title"`
	Book      string `toml:"book"`
	Subtitles string `toml:"subtitles"`
}

type batchOutcome struct {
	Index  int             `json:"index"`
	Title  string          `json:"title"`
	Result progress.Result `json:"result"`
}

func loadManifest(path string) ([]batchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest batchManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(manifest.Runs) == 0 {
		return nil, fmt.Errorf("manifest %s lists no runs", path)
	}
	base := filepath.Dir(path)
	for i := range manifest.Runs {
		entry := &manifest.Runs[i]
		if strings.TrimSpace(entry.Book) == "" || strings.TrimSpace(entry.Subtitles) == "" {
			return nil, fmt.Errorf("manifest run %d: book and subtitles are required", i+1)
		}
		entry.Book = resolveRelative(base, entry.Book)
		entry.Subtitles = resolveRelative(base, entry.Subtitles)
	}
	return manifest.Runs, nil
}

func resolveRelative(base, path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~") || filepath.IsAbs(path) {
		if expanded, err := config.ExpandPath(path); err == nil {
			return expanded
		}
		return path
	}
	return filepath.Join(base, path)
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		flags    pipelineFlags
		limit    int
		isolated bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Align every pair listed in a TOML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pipeline := flags.apply(cmd, cfg.Pipeline)
			if err := pipeline.Validate(); err != nil {
				return err
			}
			manifestPath, err := resolveInput(args[0])
			if err != nil {
				return err
			}
			entries, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			if _, err := ctx.openStore(cmd.Context(), true); err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Tasks.Limit
			}
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}

			outcomes := runBatch(cmd.Context(), ctx, entries, pipeline, limit, isolated || cfg.Worker.Isolated, cmd)

			if asJSON {
				if err := writeJSON(cmd, outcomes); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderBatchTable(outcomes))
			}
			failed := 0
			for _, o := range outcomes {
				if o.Result.Failed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "Concurrent runs (defaults to tasks.limit)")
	cmd.Flags().BoolVar(&isolated, "isolated", false, "Run each pair in a separate worker process")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the results as JSON")
	return cmd
}

// runBatch admits every entry through a task buffer. All runs publish into
// one progress channel; a single reader prints their messages prefixed with
// the entry label.
func runBatch(ctx context.Context, cc *commandContext, entries []batchEntry, pipeline config.Pipeline, limit int, isolated bool, cmd *cobra.Command) []batchOutcome {
	// Runs of one batch share a correlation id in their log lines.
	ctx = services.WithRequestID(ctx, uuid.NewString())
	events := progress.NewChannel(0)
	prefixes := make(map[string]string, len(entries))
	specs := make([]runSpec, len(entries))
	labels := make([]string, len(entries))
	for i, entry := range entries {
		label := strings.TrimSpace(entry.Title)
		if label == "" {
			label = filepath.Base(filepath.Dir(entry.Book))
		}
		specs[i] = runSpec{
			RunID:     uuid.NewString(),
			Title:     entry.Title,
			Book:      entry.Book,
			Subtitles: entry.Subtitles,
			Pipeline:  pipeline,
		}
		labels[i] = label
		prefixes[specs[i].RunID] = fmt.Sprintf("[%d %s] ", i+1, label)
	}

	feed, unsubscribe := events.Subscribe(256)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range feed {
			if e.Kind == progress.KindMessage {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s%s\n", prefixes[e.RunID], e.Message)
			}
		}
	}()

	buffer := taskbuffer.New(limit)
	outcomes := make([]batchOutcome, len(entries))
	var mu sync.Mutex
	for i := range specs {
		index := i
		taskbuffer.Enqueue(buffer, func(spec runSpec) progress.Result {
			res, err := cc.execute(ctx, spec, events, isolated)
			if res.RunID == "" {
				res.RunID = spec.RunID
			}
			if err != nil && !res.Failed() {
				res.Error = err.Error()
				res.ErrorKind = services.Kind(err)
			}
			return res
		}, specs[i], func(res progress.Result) {
			mu.Lock()
			outcomes[index] = batchOutcome{Index: index + 1, Title: labels[index], Result: res}
			mu.Unlock()
		})
	}
	buffer.Wait()
	unsubscribe()
	<-printed

	if dropped := events.Dropped(); dropped > 0 {
		cc.loggerFor().Debug("batch progress messages dropped", logging.Int("dropped", int(dropped)))
	}
	return outcomes
}

func renderBatchTable(outcomes []batchOutcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		status := "ok"
		detail := o.Result.Ref
		if o.Result.Failed() {
			status = "failed"
			detail = o.Result.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Index),
			o.Title,
			shortID(o.Result.RunID),
			status,
			strconv.Itoa(o.Result.Matches),
			detail,
		})
	}
	return renderTable(
		[]string{"#", "Title", "Run", "Status", "Matches", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
