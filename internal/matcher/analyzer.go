package matcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"booksync/internal/logging"
	"booksync/internal/procgroup"
	"booksync/internal/services"
)

// EventKind classifies analyzer output.
type EventKind int

const (
	// EventProgress carries a completion percentage.
	EventProgress EventKind = iota
	// EventMatch carries one scored correspondence.
	EventMatch
	// EventFailure terminates the stream with Err set.
	EventFailure
)

// AnalyzerEvent is one decoded unit of analyzer output.
type AnalyzerEvent struct {
	Kind          EventKind
	Percent       int
	SubtitleIndex int
	QuoteIndex    int
	Score         float64
	Err           error
}

// Batch is the material handed to an analyzer: one text per unit and the
// raw parameter vector.
type Batch struct {
	Quotes    []string
	Subtitles []string
	Params    []float64
}

// Analyzer performs matching out of process. The returned channel delivers
// events in arrival order and is closed when the analysis is complete.
type Analyzer interface {
	Submit(ctx context.Context, batch Batch) (<-chan AnalyzerEvent, error)
}

// Command describes one process invocation.
type Command struct {
	Binary string
	Args   []string
	Dir    string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command, onStdout, onStderr func(string)) error
}

// AnalyzerOption configures a ProcessAnalyzer.
type AnalyzerOption func(*ProcessAnalyzer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) AnalyzerOption {
	return func(a *ProcessAnalyzer) {
		if exec != nil {
			a.exec = exec
		}
	}
}

// WithAnalyzerLogger attaches a logger for analyzer diagnostics.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *ProcessAnalyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

const (
	bookFileName     = "book"
	subtitleFileName = "subtitle"
)

// ProcessAnalyzer runs an external analysis command. The batch is written to
// "book" and "subtitle" files (one unit per line) in a private working
// directory; the command receives the configured arguments, both file names,
// and the parameter vector, and reports on stdout:
//
//	progress - <percent>
//	match - <subtitle index> - <quote index> - <score>
type ProcessAnalyzer struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// NewProcessAnalyzer constructs an analyzer for binary.
func NewProcessAnalyzer(binary string, args []string, timeout time.Duration, opts ...AnalyzerOption) (*ProcessAnalyzer, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "init", "analyzer command required", nil)
	}
	a := &ProcessAnalyzer{
		binary:  binary,
		args:    append([]string(nil), args...),
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Submit implements Analyzer.
func (a *ProcessAnalyzer) Submit(ctx context.Context, batch Batch) (<-chan AnalyzerEvent, error) {
	dir, err := os.MkdirTemp("", "booksync-analyzer-")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analyzer", "prepare", "create working directory", err)
	}
	if err := writeUnits(filepath.Join(dir, bookFileName), batch.Quotes); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if err := writeUnits(filepath.Join(dir, subtitleFileName), batch.Subtitles); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	args := append([]string(nil), a.args...)
	args = append(args, bookFileName, subtitleFileName)
	for _, v := range batch.Params {
		args = append(args, strconv.FormatFloat(v, 'g', -1, 64))
	}
	cmd := Command{Binary: a.binary, Args: args, Dir: dir}

	events := make(chan AnalyzerEvent)
	go func() {
		defer close(events)
		defer os.RemoveAll(dir)

		runCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}

		send := func(ev AnalyzerEvent) bool {
			select {
			case events <- ev:
				return true
			case <-runCtx.Done():
				return false
			}
		}

		err := a.exec.Run(runCtx, cmd, func(line string) {
			ev, ok := parseAnalyzerLine(line)
			if !ok {
				if strings.TrimSpace(line) != "" {
					a.logger.Debug("ignoring analyzer output", logging.String("line", line))
				}
				return
			}
			send(ev)
		}, func(line string) {
			a.logger.Debug("analyzer stderr", logging.String("line", line))
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			failure := services.Wrap(services.ErrSubprocess, "analyzer", a.binary, "analysis failed", err)
			select {
			case events <- AnalyzerEvent{Kind: EventFailure, Err: failure}:
			case <-ctx.Done():
			}
		}
	}()
	return events, nil
}

func writeUnits(path string, units []string) error {
	var b strings.Builder
	for _, unit := range units {
		b.WriteString(strings.ReplaceAll(unit, "\n", " "))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return services.Wrap(services.ErrTransient, "analyzer", "prepare", "write "+filepath.Base(path), err)
	}
	return nil
}

// fieldSeparator splits analyzer output fields. A dash without surrounding
// whitespace belongs to the value, as in "-0.5" or "1e-05".
var fieldSeparator = regexp.MustCompile(`\s+-\s+`)

func parseAnalyzerLine(line string) (AnalyzerEvent, bool) {
	parts := fieldSeparator.Split(strings.TrimSpace(line), -1)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) == 2 && parts[0] == "progress":
		percent, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return AnalyzerEvent{}, false
		}
		return AnalyzerEvent{Kind: EventProgress, Percent: int(percent)}, true
	case len(parts) == 4 && parts[0] == "match":
		sub, err := strconv.Atoi(parts[1])
		if err != nil {
			return AnalyzerEvent{}, false
		}
		quote, err := strconv.Atoi(parts[2])
		if err != nil {
			return AnalyzerEvent{}, false
		}
		score, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return AnalyzerEvent{}, false
		}
		return AnalyzerEvent{Kind: EventMatch, SubtitleIndex: sub, QuoteIndex: quote, Score: score}, true
	default:
		return AnalyzerEvent{}, false
	}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, command Command, onStdout, onStderr func(string)) error {
	if _, err := exec.LookPath(command.Binary); err != nil {
		return fmt.Errorf("locate %s: %w", command.Binary, err)
	}
	cmd := exec.CommandContext(ctx, command.Binary, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	procgroup.Configure(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)

	wg.Wait()
	if scanErr != nil {
		_ = procgroup.Kill(cmd.Process)
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
