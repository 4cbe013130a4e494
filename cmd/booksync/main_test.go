package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"booksync/internal/evaluation"
	"booksync/internal/progress"
	"booksync/internal/store"
	"booksync/internal/testsupport"
)

type cliEnv struct {
	base       string
	configPath string
	book       string
	subtitles  string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)

	configPath := filepath.Join(base, "config.toml")
	contents := fmt.Sprintf(`[paths]
data_dir = %q
output_dir = %q
log_dir = %q

[logging]
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "results"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	inputs := filepath.Join(base, "inputs")
	quotes := []string{"the cat sat on the mat", "and then the dog barked at the moon"}
	return &cliEnv{
		base:       base,
		configPath: configPath,
		book:       testsupport.WriteBook(t, inputs, "Animals", quotes...),
		subtitles:  testsupport.WriteSubtitles(t, inputs, testsupport.EvenLines(quotes...)...),
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd, cleanup := newRootCommand()
	defer cleanup()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSyncWritesResultAndRecordsRun(t *testing.T) {
	env := setupCLIEnv(t)

	stdout, stderr, err := env.run(t, "sync", env.book, env.subtitles)
	if err != nil {
		t.Fatalf("sync: %v (stderr %s)", err, stderr)
	}
	resultPath := strings.TrimSpace(stdout)
	if !strings.HasPrefix(filepath.Base(resultPath), "animals-") {
		t.Fatalf("unexpected result path %q", resultPath)
	}
	if !strings.Contains(stderr, "finished with 2 matches") {
		t.Fatalf("missing summary in stderr: %s", stderr)
	}

	stdout, _, err = env.run(t, "runs", "list", "--json")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	var runs []store.Run
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, stdout)
	}
	if len(runs) != 1 || runs[0].Status != store.StatusFinished || runs[0].ResultRef != resultPath {
		t.Fatalf("unexpected runs %+v", runs)
	}

	stdout, _, err = env.run(t, "runs", "show", runs[0].ID[:8])
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(stdout, "Animals") || !strings.Contains(stdout, "finished") {
		t.Fatalf("unexpected show output:\n%s", stdout)
	}

	stdout, _, err = env.run(t, "evaluate", "--json", resultPath, resultPath)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var rep evaluation.Report
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.TruePositives != 2 || rep.Precision != 1 || rep.Recall != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestSyncStoreFormatterAndEvaluateRunRef(t *testing.T) {
	env := setupCLIEnv(t)

	stdout, _, err := env.run(t, "sync", "--formatter", "store", "--json", env.book, env.subtitles)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var res progress.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, stdout)
	}
	if res.Ref != "run:"+res.RunID || res.Matches != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	stdout, _, err = env.run(t, "runs", "show", "--matches", res.RunID)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(stdout, "the cat sat on the mat") {
		t.Fatalf("stored matches not listed:\n%s", stdout)
	}

	stdout, _, err = env.run(t, "evaluate", res.Ref, res.Ref)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(stdout, "1.0000") {
		t.Fatalf("unexpected evaluation output:\n%s", stdout)
	}
}

func TestSyncStreamPrintsMatches(t *testing.T) {
	env := setupCLIEnv(t)
	stdout, _, err := env.run(t, "sync", "--formatter", "stream", "--post=", env.book, env.subtitles)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"quote_index":0`) {
		t.Fatalf("unexpected stream output:\n%s", stdout)
	}
}

func TestSyncRejectsUnknownMatcher(t *testing.T) {
	env := setupCLIEnv(t)
	_, _, err := env.run(t, "sync", "--matcher", "semantic", env.book, env.subtitles)
	if err == nil || !strings.Contains(err.Error(), "semantic") {
		t.Fatalf("expected unknown matcher error, got %v", err)
	}
}

func TestBatchRunsManifest(t *testing.T) {
	env := setupCLIEnv(t)
	manifest := filepath.Join(env.base, "batch.toml")
	contents := fmt.Sprintf(`[[run]]
title = "first"
book = %q
subtitles = %q

[[run]]
title = "second"
book = "inputs/book.json"
subtitles = "inputs/subtitles.json"

[[run]]
title = "broken"
book = "inputs/missing.json"
subtitles = "inputs/subtitles.json"
`, env.book, env.subtitles)
	if err := os.WriteFile(manifest, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	stdout, _, err := env.run(t, "batch", "--limit", "2", "--json", manifest)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 runs failed") {
		t.Fatalf("expected one failure, got %v", err)
	}
	var outcomes []batchOutcome
	if err := json.Unmarshal([]byte(stdout), &outcomes); err != nil {
		t.Fatalf("decode outcomes: %v\n%s", err, stdout)
	}
	if len(outcomes) != 3 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if outcomes[0].Result.Matches != 2 || outcomes[1].Result.Matches != 2 {
		t.Fatalf("successful runs lost matches: %+v", outcomes)
	}
	if !outcomes[2].Result.Failed() || outcomes[2].Result.ErrorKind != "parse" {
		t.Fatalf("broken run not reported: %+v", outcomes[2])
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLIEnv(t)
	target := filepath.Join(env.base, "generated", "config.toml")

	if _, _, err := env.run(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}

	stdout, _, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(stdout, "[pipeline]") || !strings.Contains(stdout, filepath.Join(env.base, "data")) {
		t.Fatalf("unexpected config output:\n%s", stdout)
	}

	stdout, _, err = env.run(t, "config", "validate")
	if err != nil || !strings.Contains(stdout, "Configuration valid") {
		t.Fatalf("config validate: %v\n%s", err, stdout)
	}
}
