package worker_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"booksync/internal/config"
	"booksync/internal/coordinator"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/testsupport"
	"booksync/internal/worker"
)

const helperEnv = "BOOKSYNC_WORKER_HELPER"

// TestHelperWorker is not a real test: the runner tests re-execute the test
// binary with helperEnv set so this function plays the worker process.
func TestHelperWorker(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	switch mode {
	case "crash":
		os.Stdout.WriteString("not an event\n")
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	cfg := config.Default()
	coord := coordinator.New(&cfg, nil)
	if err := worker.Serve(context.Background(), coord, os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func newRunner(t *testing.T, mode string) *worker.Runner {
	t.Helper()
	runner, err := worker.NewRunner(os.Args[0], worker.LaunchOptions{
		ExtraArgs: []string{"-test.run=^TestHelperWorker$", "--"},
		Env:       []string{helperEnv + "=" + mode},
	}, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func streamPipeline() config.Pipeline {
	p := config.Default().Pipeline
	p.Formatter = "stream"
	return p
}

func TestRunnerForwardsEvents(t *testing.T) {
	dir := t.TempDir()
	text := "the cat sat on the mat"
	job := worker.Job{
		RunID:        "run-worker-1",
		BookPath:     testsupport.WriteBook(t, dir, "Cats", text),
		SubtitlePath: testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(text)...),
		Pipeline:     streamPipeline(),
	}

	var kinds []string
	res, err := newRunner(t, "serve").Run(context.Background(), job, progress.Func(func(e progress.Event) {
		kinds = append(kinds, string(e.Kind))
		if e.RunID != job.RunID {
			t.Errorf("event for another run: %+v", e)
		}
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != job.RunID || res.Matches != 1 || res.Ref != "stream" {
		t.Fatalf("unexpected result %+v", res)
	}
	joined := strings.Join(kinds, ",")
	if !strings.Contains(joined, "content,end") || !strings.HasSuffix(joined, "result") {
		t.Fatalf("unexpected event kinds %q", joined)
	}
}

func TestRunnerPropagatesErrorKind(t *testing.T) {
	dir := t.TempDir()
	job := worker.Job{
		RunID:        "run-worker-2",
		BookPath:     filepath.Join(dir, "missing.json"),
		SubtitlePath: testsupport.WriteSubtitles(t, dir, testsupport.EvenLines("hello there")...),
		Pipeline:     streamPipeline(),
	}
	res, err := newRunner(t, "serve").Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !res.Failed() || res.ErrorKind != "parse" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunnerWithoutResult(t *testing.T) {
	_, err := newRunner(t, "crash").Run(context.Background(), worker.Job{RunID: "x"}, nil)
	if !errors.Is(err, services.ErrSubprocess) {
		t.Fatalf("expected subprocess error, got %v", err)
	}
}

func TestRunnerCancellationKillsWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newRunner(t, "hang").Run(ctx, worker.Job{RunID: "x"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("worker outlived cancellation by %v", elapsed)
	}
}

func TestServeReportsUndecodableJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var out bytes.Buffer
	err := worker.Serve(context.Background(), coordinator.New(cfg, nil), strings.NewReader("{"), &out)
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	evt, derr := progress.DecodeLine(bytes.TrimSpace(out.Bytes()))
	if derr != nil {
		t.Fatalf("decode event: %v", derr)
	}
	if !evt.Terminal() || evt.Result == nil || evt.Result.ErrorKind != "parse" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestServeReportsRejectedPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var out bytes.Buffer
	in := strings.NewReader(`{"run_id":"r1","book":"b","subtitles":"s","pipeline":{"Matcher":"nonsense","Formatter":"stream"}}`)
	err := worker.Serve(context.Background(), coordinator.New(cfg, nil), in, &out)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	evt, derr := progress.DecodeLine(bytes.TrimSpace(out.Bytes()))
	if derr != nil {
		t.Fatalf("decode event: %v", derr)
	}
	if evt.Result == nil || evt.Result.RunID != "r1" || evt.Result.ErrorKind != "configuration" {
		t.Fatalf("unexpected event %+v", evt)
	}
}
