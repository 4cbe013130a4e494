package formatter_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"booksync/internal/config"
	"booksync/internal/formatter"
	"booksync/internal/model"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/testsupport"
)

func sampleResult() formatter.Result {
	return formatter.Result{
		RunID:    "0b7e3f52-1111-4000-8000-000000000000",
		Title:    "The Hobbit: Part 1",
		Pipeline: config.Default().Pipeline,
		Quotes: []model.Quote{
			{Index: 0, Text: "In a hole in the ground there lived a hobbit.", Paragraph: model.NoParagraph},
			{Index: 1, Text: "Good morning!", Paragraph: model.NoParagraph},
		},
		Subtitles: []model.SubtitleLine{
			{Index: 0, From: 61500 * time.Millisecond, To: 63 * time.Second, Text: "In a hole in the ground there lived a hobbit", Scene: 1},
			{Index: 1, From: 70 * time.Second, To: 71 * time.Second, Text: "Good morning", Scene: 2},
		},
		Matches: model.MatchSet{
			{QuoteIndex: 0, SubtitleIndex: 0, From: 61500 * time.Millisecond, Score: 1, Scene: 1},
			{QuoteIndex: 1, SubtitleIndex: 1, From: 70 * time.Second, Score: 0.8, Scene: 2},
		},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestJSONFileWritesDocument(t *testing.T) {
	dir := t.TempDir()
	f, err := formatter.Lookup("json", formatter.Deps{OutputDir: dir})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	var messages []string
	ref, err := f.Format(context.Background(), sampleResult(), progress.Func(func(e progress.Event) {
		messages = append(messages, e.Message)
	}))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if filepath.Base(ref) != "the_hobbit__part_1-0b7e3f52.json" {
		t.Fatalf("unexpected file name %q", filepath.Base(ref))
	}
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %v", messages)
	}

	file, err := os.Open(ref)
	if err != nil {
		t.Fatalf("open result: %v", err)
	}
	defer file.Close()
	doc, err := formatter.ReadDocument(file)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if len(doc.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(doc.Matches))
	}
	first := doc.Matches[0]
	if first.From != "00:01:01,500" || first.FromMillis != 61500 || first.Subtitle == "" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if doc.Pipeline.Matcher != "overlap" {
		t.Fatalf("pipeline not recorded: %+v", doc.Pipeline)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".booksync-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestStreamEmitsContentThenEnd(t *testing.T) {
	var events []progress.Event
	ref, err := formatter.Stream{}.Format(context.Background(), sampleResult(), progress.Func(func(e progress.Event) {
		events = append(events, e)
	}))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if ref != "stream" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(events) != 3 || events[2].Kind != progress.KindEnd {
		t.Fatalf("expected two content events and an end marker, got %+v", events)
	}
	var rec formatter.Record
	if err := json.Unmarshal(events[1].Chunk, &rec); err != nil {
		t.Fatalf("decode chunk: %v", err)
	}
	if rec.QuoteIndex != 1 || rec.Score != 0.8 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestStoreFormatterPersistsMatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	f, err := formatter.Lookup("store", formatter.Deps{Store: st})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	res := sampleResult()
	ref, err := f.Format(context.Background(), res, progress.Discard)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if ref != "run:"+res.RunID {
		t.Fatalf("unexpected ref %q", ref)
	}
	rows, err := st.Matches(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(rows) != 2 || rows[0].QuoteText != res.Quotes[0].Text || rows[1].From != 70*time.Second {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestLookupErrors(t *testing.T) {
	for _, name := range []string{"xml", "json", "store"} {
		if _, err := formatter.Lookup(name, formatter.Deps{}); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}
