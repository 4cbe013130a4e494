package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"booksync/internal/config"
	"booksync/internal/coordinator"
	"booksync/internal/parser"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/worker"
)

// runSpec is one book/subtitle pair to align.
type runSpec struct {
	RunID     string
	Title     string
	Book      string
	Subtitles string
	Pipeline  config.Pipeline
}

func resolveInput(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return expanded, nil
}

// execute runs the pair in-process or, when isolated, in a worker process. The
// returned result is populated even when the run fails.
func (c *commandContext) execute(ctx context.Context, spec runSpec, sink progress.Sink, isolated bool) (progress.Result, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return progress.Result{}, err
	}
	logger := c.loggerFor()

	if isolated {
		runner, err := worker.NewRunner("", worker.LaunchOptions{ConfigPath: c.configPath}, logger)
		if err != nil {
			return progress.Result{}, err
		}
		id := spec.RunID
		if id == "" {
			id = uuid.NewString()
		}
		return runner.Run(ctx, worker.Job{
			RunID:        id,
			Title:        spec.Title,
			BookPath:     spec.Book,
			SubtitlePath: spec.Subtitles,
			Pipeline:     spec.Pipeline,
		}, sink)
	}

	st, err := c.openStore(ctx, true)
	if err != nil {
		return progress.Result{}, err
	}
	var result progress.Result
	capture := progress.Func(func(e progress.Event) {
		if e.Terminal() && e.Result != nil {
			result = *e.Result
		}
	})
	coord := coordinator.New(cfg, logger, coordinator.WithStore(st))
	_, err = coord.Start(ctx, coordinator.Request{
		Book:      parser.FileSource(spec.Book),
		Subtitles: parser.FileSource(spec.Subtitles),
		Pipeline:  spec.Pipeline,
		Sink:      progress.Tee(sink, capture),
		Title:     spec.Title,
		RunID:     spec.RunID,
	})
	if err != nil && !result.Failed() {
		result.Error = err.Error()
		result.ErrorKind = services.Kind(err)
	}
	return result, err
}
