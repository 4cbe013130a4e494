// Package worker runs an alignment run in an isolated child process.
//
// The parent writes a Job as JSON to the child's stdin and reads progress
// events, one JSON document per line, from its stdout. The child's stderr
// carries its logs. Cancelling the parent context kills the child's whole
// process group.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"booksync/internal/config"
	"booksync/internal/coordinator"
	"booksync/internal/logging"
	"booksync/internal/parser"
	"booksync/internal/procgroup"
	"booksync/internal/progress"
	"booksync/internal/services"
)

// Job is the unit of work handed to a worker process.
type Job struct {
	RunID        string          `json:"run_id"`
	Title        string          `json:"title,omitempty"`
	BookPath     string          `json:"book"`
	SubtitlePath string          `json:"subtitles"`
	Pipeline     config.Pipeline `json:"pipeline"`
}

// LaunchOptions controls how the worker executable is invoked.
type LaunchOptions struct {
	ConfigPath string
	// ExtraArgs are placed before the worker arguments.
	ExtraArgs []string
	Env       []string
}

// Runner starts worker processes.
type Runner struct {
	binary string
	opts   LaunchOptions
	logger *slog.Logger
}

// NewRunner returns a runner for executable. An empty executable resolves
// the running binary.
func NewRunner(executable string, opts LaunchOptions, logger *slog.Logger) (*Runner, error) {
	if strings.TrimSpace(executable) == "" {
		path, err := os.Executable()
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "worker", "init", "resolve executable", err)
		}
		executable = path
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		binary: executable,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "worker"),
	}, nil
}

func (r *Runner) args() []string {
	args := append([]string(nil), r.opts.ExtraArgs...)
	args = append(args, "worker")
	if cfg := strings.TrimSpace(r.opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	return args
}

// Run executes job in a child process, forwarding its events to sink. A run
// that fails inside the child returns an error carrying the same marker as
// the child's error.
func (r *Runner) Run(ctx context.Context, job Job, sink progress.Sink) (progress.Result, error) {
	if sink == nil {
		sink = progress.Discard
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return progress.Result{}, services.Wrap(services.ErrTransient, "worker", "encode", "job", err)
	}

	cmd := exec.CommandContext(ctx, r.binary, r.args()...) //nolint:gosec
	cmd.Env = append(os.Environ(), r.opts.Env...)
	cmd.Stdin = bytes.NewReader(payload)
	procgroup.Configure(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return progress.Result{}, services.Wrap(services.ErrSubprocess, "worker", "start", "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return progress.Result{}, services.Wrap(services.ErrSubprocess, "worker", "start", "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return progress.Result{}, services.Wrap(services.ErrSubprocess, "worker", "start", r.binary, err)
	}
	logger := r.logger.With(logging.String(logging.FieldRunID, job.RunID), logging.Int("pid", cmd.Process.Pid))
	logger.Debug("worker started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				logger.Debug("worker stderr", logging.String("line", line))
			}
		}
	}()

	var result *progress.Result
	capture := progress.Func(func(e progress.Event) {
		if e.Terminal() && e.Result != nil {
			res := *e.Result
			result = &res
		}
		sink.Emit(e)
	})
	readErr := progress.ReadJSONLines(stdout, capture, func(line string) {
		logger.Debug("ignoring worker output", logging.String("line", line))
	})
	wg.Wait()
	waitErr := cmd.Wait()

	if err := ctx.Err(); err != nil {
		return progress.Result{}, err
	}
	if result == nil {
		cause := errors.Join(waitErr, readErr)
		return progress.Result{}, services.Wrap(services.ErrSubprocess, "worker", job.RunID, "worker exited without a result", cause)
	}
	if result.Failed() {
		return *result, services.Wrap(services.Marker(result.ErrorKind), "worker", job.RunID, result.Error, nil)
	}
	if waitErr != nil {
		return *result, services.Wrap(services.ErrSubprocess, "worker", job.RunID, "worker exited abnormally", waitErr)
	}
	logger.Debug("worker finished", logging.Int("matches", result.Matches))
	return *result, nil
}

// Serve is the child side: it decodes one job from in, runs it through coord
// and writes every event to out. A terminal result event is always written,
// including for jobs rejected before the run started.
func Serve(ctx context.Context, coord *coordinator.Coordinator, in io.Reader, out io.Writer) error {
	sink := progress.NewJSONLines(out)
	var job Job
	if err := json.NewDecoder(in).Decode(&job); err != nil {
		err = services.Wrap(services.ErrParse, "worker", "decode", "job", err)
		progress.Finish(sink, progress.Result{Error: err.Error(), ErrorKind: services.Kind(err)})
		return err
	}

	var finished bool
	watch := progress.Func(func(e progress.Event) {
		if e.Terminal() {
			finished = true
		}
		sink.Emit(e)
	})
	_, err := coord.Start(ctx, coordinator.Request{
		Book:      parser.FileSource(job.BookPath),
		Subtitles: parser.FileSource(job.SubtitlePath),
		Pipeline:  job.Pipeline,
		Sink:      watch,
		Title:     job.Title,
		RunID:     job.RunID,
	})
	if err != nil && !finished {
		progress.Finish(sink, progress.Result{RunID: job.RunID, Error: err.Error(), ErrorKind: services.Kind(err)})
	}
	if werr := sink.Err(); werr != nil {
		return fmt.Errorf("write events: %w", werr)
	}
	return err
}
