package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"booksync/internal/config"
	"booksync/internal/store"
	"booksync/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := store.Run{
		ID:             "4f1c2a9e-0000-4000-8000-000000000001",
		Title:          "Dune",
		BookSource:     "book.json",
		SubtitleSource: "subs.json",
		Pipeline:       config.Default().Pipeline,
	}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.UpdateCounts(ctx, run.ID, 12, 40); err != nil {
		t.Fatalf("UpdateCounts: %v", err)
	}

	matches := []store.MatchRecord{
		{QuoteIndex: 0, SubtitleIndex: 3, From: 1500 * time.Millisecond, Score: 1, Scene: 1, QuoteText: "fear", SubtitleText: "fear"},
		{QuoteIndex: 4, SubtitleIndex: 9, From: 9 * time.Second, Score: 0.7, Scene: 2, Merged: 1},
	}
	if err := st.SaveMatches(ctx, run.ID, matches); err != nil {
		t.Fatalf("SaveMatches: %v", err)
	}
	if err := st.FinishRun(ctx, run.ID, "run:"+run.ID, len(matches)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := st.GetRun(ctx, "4f1c2a9e")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.Status != store.StatusFinished || got.MatchCount != 2 || got.QuoteCount != 12 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.FinishedAt == nil || got.Duration() < 0 {
		t.Fatalf("expected finished timestamp, got %+v", got.FinishedAt)
	}
	if got.Pipeline.Matcher != "overlap" || len(got.Pipeline.Postprocessors) != 2 {
		t.Fatalf("pipeline not persisted: %+v", got.Pipeline)
	}

	stored, err := st.Matches(ctx, run.ID)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(stored) != 2 || stored[0] != matches[0] || stored[1] != matches[1] {
		t.Fatalf("unexpected matches: %+v", stored)
	}

	if err := st.FailRun(ctx, run.ID, "late", "stage"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected finished run to stay finished, got %v", err)
	}
}

func TestListRunsAndInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := st.CreateRun(ctx, store.Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}
	if err := st.FailRun(ctx, "run-a", "boom", "parse"); err != nil {
		t.Fatalf("FailRun: %v", err)
	}

	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-c" {
		t.Fatalf("expected newest first, got %d runs starting %q", len(runs), runs[0].ID)
	}

	failed, err := st.ListRuns(ctx, 10, store.StatusFailed)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorKind != "parse" {
		t.Fatalf("unexpected failed runs: %+v", failed)
	}

	n, err := st.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 interrupted runs, got %d", n)
	}

	pruned, err := st.PruneFinished(ctx, time.Now())
	if err != nil {
		t.Fatalf("PruneFinished: %v", err)
	}
	if pruned != 3 {
		t.Fatalf("expected 3 pruned runs, got %d", pruned)
	}
}

func TestGetRunMissingAndAmbiguous(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.GetRun(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, id := range []string{"abc1", "abc2"} {
		if err := st.CreateRun(ctx, store.Run{ID: id}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	if _, err := st.GetRun(ctx, "abc"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	if run, err := st.GetRun(ctx, "abc2"); err != nil || run.ID != "abc2" {
		t.Fatalf("expected exact match, got %v %v", run, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.CreateRun(context.Background(), store.Run{ID: "persisted"}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	st.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.GetRun(context.Background(), "persisted"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}
