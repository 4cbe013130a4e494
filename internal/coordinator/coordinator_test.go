package coordinator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"booksync/internal/config"
	"booksync/internal/coordinator"
	"booksync/internal/formatter"
	"booksync/internal/logging"
	"booksync/internal/matcher"
	"booksync/internal/model"
	"booksync/internal/parser"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/store"
	"booksync/internal/testsupport"
)

const (
	quoteApril  = "It was a bright cold day in April"
	quoteClocks = "and the clocks were striking thirteen"
)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) phases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == progress.KindMessage {
			out = append(out, e.Phase)
		}
	}
	return out
}

func (r *recorder) result(t *testing.T) progress.Result {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no events recorded")
	}
	last := r.events[len(r.events)-1]
	if !last.Terminal() || last.Result == nil {
		t.Fatalf("last event is not a result: %+v", last)
	}
	return *last.Result
}

func pipeline(matcherName, formatterName string) config.Pipeline {
	p := config.Default().Pipeline
	p.Matcher = matcherName
	p.Formatter = formatterName
	return p
}

func TestStartRunsFullPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	book := testsupport.WriteBook(t, dir, "Nineteen Eighty-Four", quoteApril, quoteClocks)
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(quoteApril, quoteClocks)...)

	rec := &recorder{}
	coord := coordinator.New(cfg, logging.NewNop())
	out, err := coord.Start(context.Background(), coordinator.Request{
		Book:      parser.FileSource(book),
		Subtitles: parser.FileSource(subs),
		Pipeline:  pipeline("overlap", "stream"),
		Sink:      rec,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if out.Title != "Nineteen Eighty-Four" {
		t.Fatalf("title not taken from book: %q", out.Title)
	}
	if len(out.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", out.Matches)
	}
	for i, m := range out.Matches {
		if m.QuoteIndex != i || m.SubtitleIndex != i || m.Score != 1 {
			t.Fatalf("unexpected match %d: %+v", i, m)
		}
	}

	want := []string{
		coordinator.PhaseParsing,
		coordinator.PhaseSynchronizing,
		coordinator.PhasePostprocessing,
		coordinator.PhaseFormatting,
		coordinator.PhaseFinished,
	}
	if got := strings.Join(rec.phases(), ","); got != strings.Join(want, ",") {
		t.Fatalf("unexpected phases %q", got)
	}

	res := rec.result(t)
	if res.RunID != out.RunID || res.Ref != "stream" || res.Matches != 2 || res.Failed() {
		t.Fatalf("unexpected result %+v (run %s)", res, out.RunID)
	}
	var content int
	for _, e := range rec.events {
		if e.RunID != out.RunID {
			t.Fatalf("event without run id: %+v", e)
		}
		if e.Kind == progress.KindContent {
			content++
		}
	}
	if content != 2 {
		t.Fatalf("expected 2 content events, got %d", content)
	}
}

func TestStartSkipsEmptyPostprocessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	book := testsupport.WriteBook(t, dir, "", quoteApril)
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(quoteApril)...)

	p := pipeline("overlap", "stream")
	p.Postprocessors = nil
	rec := &recorder{}
	_, err := coordinator.New(cfg, nil).Start(context.Background(), coordinator.Request{
		Book:      parser.FileSource(book),
		Subtitles: parser.FileSource(subs),
		Pipeline:  p,
		Sink:      rec,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, phase := range rec.phases() {
		if phase == coordinator.PhasePostprocessing {
			t.Fatal("postprocessing phase emitted for an empty chain")
		}
	}
}

func TestStartTranslatesDroppedUnits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	book := testsupport.WriteBook(t, dir, "", "...", quoteApril)
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines("<i></i>", "- -", quoteApril)...)

	out, err := coordinator.New(cfg, nil).Start(context.Background(), coordinator.Request{
		Book:      parser.FileSource(book),
		Subtitles: parser.FileSource(subs),
		Pipeline:  pipeline("overlap", "stream"),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(out.Matches) != 1 {
		t.Fatalf("expected one match, got %+v", out.Matches)
	}
	m := out.Matches[0]
	if m.QuoteIndex != 1 || m.SubtitleIndex != 2 {
		t.Fatalf("indices not mapped back to parsed inputs: %+v", m)
	}
	if out.Quotes != 2 || out.Subtitles != 3 {
		t.Fatalf("unexpected input sizes: %+v", out)
	}
}

func TestStartWritesJSONAndRecordsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	dir := t.TempDir()
	book := testsupport.WriteBook(t, dir, "Orwell", quoteApril, quoteClocks)
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(quoteApril, quoteClocks)...)

	coord := coordinator.New(cfg, nil, coordinator.WithStore(st))
	out, err := coord.Start(context.Background(), coordinator.Request{
		Book:      parser.FileSource(book),
		Subtitles: parser.FileSource(subs),
		Pipeline:  pipeline("overlap", "json"),
		Title:     "Orwell test",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	file, err := os.Open(out.Ref)
	if err != nil {
		t.Fatalf("open result file: %v", err)
	}
	defer file.Close()
	doc, err := formatter.ReadDocument(file)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if doc.RunID != out.RunID || doc.Title != "Orwell test" || len(doc.Matches) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}

	run, err := st.GetRun(context.Background(), out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.StatusFinished || run.MatchCount != 2 || run.ResultRef != out.Ref {
		t.Fatalf("unexpected stored run %+v", run)
	}
	if run.QuoteCount != 2 || run.SubtitleCount != 2 || run.BookSource != "book.json" {
		t.Fatalf("input details not recorded: %+v", run)
	}
}

func TestStartParseFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	dir := t.TempDir()
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(quoteApril)...)

	rec := &recorder{}
	coord := coordinator.New(cfg, nil, coordinator.WithStore(st))
	out, err := coord.Start(context.Background(), coordinator.Request{
		Book:      parser.BytesSource{Label: "broken.json", Data: []byte(`{"quotes": [`)},
		Subtitles: parser.FileSource(subs),
		Pipeline:  pipeline("overlap", "stream"),
		Sink:      rec,
	})
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	res := rec.result(t)
	if !res.Failed() || res.ErrorKind != "parse" {
		t.Fatalf("unexpected result %+v", res)
	}
	run, err := st.GetRun(context.Background(), out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.StatusFailed || run.ErrorKind != "parse" {
		t.Fatalf("failure not recorded: %+v", run)
	}
}

func TestStartRejectsUnknownStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	coord := coordinator.New(cfg, nil)
	cases := map[string]config.Pipeline{
		"matcher":   pipeline("semantic", "stream"),
		"formatter": pipeline("overlap", "xml"),
		"external":  pipeline("external", "stream"),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			_, err := coord.Start(context.Background(), coordinator.Request{
				Book:      parser.BytesSource{Label: "b"},
				Subtitles: parser.BytesSource{Label: "s"},
				Pipeline:  p,
				Sink:      rec,
			})
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if len(rec.events) != 0 {
				t.Fatalf("events emitted before the run started: %+v", rec.events)
			}
		})
	}
}

func TestStartRejectsMissingAnalyzerBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analyzer.Command = filepath.Join(t.TempDir(), "missing-analyzer")
	coord := coordinator.New(cfg, nil)

	rec := &recorder{}
	_, err := coord.Start(context.Background(), coordinator.Request{
		Book:      parser.BytesSource{Label: "b"},
		Subtitles: parser.BytesSource{Label: "s"},
		Pipeline:  pipeline("external", "stream"),
		Sink:      rec,
	})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing-analyzer") || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error does not name the missing binary: %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("events emitted before the run started: %+v", rec.events)
	}
}

type countingAnalyzer struct {
	calls atomic.Int32
}

func (a *countingAnalyzer) Submit(_ context.Context, batch matcher.Batch) (<-chan matcher.AnalyzerEvent, error) {
	a.calls.Add(1)
	ch := make(chan matcher.AnalyzerEvent, 2)
	ch <- matcher.AnalyzerEvent{Kind: matcher.EventProgress, Percent: 50}
	ch <- matcher.AnalyzerEvent{Kind: matcher.EventMatch, QuoteIndex: 0, SubtitleIndex: 0, Score: 0.75}
	close(ch)
	return ch, nil
}

func TestDoubleDeliveryTriggersMatcherOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	analyzer := &countingAnalyzer{}
	coord := coordinator.New(cfg, nil, coordinator.WithAnalyzer(analyzer))
	run, err := coord.NewRun(coordinator.Request{Pipeline: pipeline("external", "stream")})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	book := parser.Book{Quotes: []model.Quote{{Index: 0, Text: quoteApril, Paragraph: model.NoParagraph}}}
	lines := []model.SubtitleLine{{Index: 0, Text: quoteApril, Scene: model.NoScene}}

	var (
		wg        sync.WaitGroup
		triggered atomic.Int32
	)
	deliver := func(fn func() (bool, error)) {
		defer wg.Done()
		ok, err := fn()
		if err != nil {
			t.Errorf("delivery failed: %v", err)
		}
		if ok {
			triggered.Add(1)
		}
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		wg.Add(2)
		go deliver(func() (bool, error) { return run.DeliverBook(ctx, book) })
		go deliver(func() (bool, error) { return run.DeliverSubtitles(ctx, lines) })
	}
	wg.Wait()

	if got := analyzer.calls.Load(); got != 1 {
		t.Fatalf("matcher invoked %d times", got)
	}
	if got := triggered.Load(); got != 1 {
		t.Fatalf("%d deliveries reported a trigger", got)
	}
	if run.State() != coordinator.StateDone {
		t.Fatalf("unexpected state %s", run.State())
	}
	if out := run.Outcome(); len(out.Matches) != 1 || out.Matches[0].Score != 0.75 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestStartWithAnalyzerProcess(t *testing.T) {
	script := `test -f "$1" && test -f "$2" || exit 3
echo "progress - 50"
echo "match - 0 - 0 - 0.9"
echo "progress - 100"
`
	cfg := testsupport.NewConfig(t, testsupport.WithAnalyzerScript(script))
	dir := t.TempDir()
	book := testsupport.WriteBook(t, dir, "", "...", quoteClocks)
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(quoteClocks)...)

	rec := &recorder{}
	out, err := coordinator.New(cfg, nil).Start(context.Background(), coordinator.Request{
		Book:      parser.FileSource(book),
		Subtitles: parser.FileSource(subs),
		Pipeline:  pipeline("external", "stream"),
		Sink:      rec,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(out.Matches) != 1 || out.Matches[0].QuoteIndex != 1 || out.Matches[0].Score != 0.9 {
		t.Fatalf("unexpected matches %+v", out.Matches)
	}
	var percents []int
	for _, e := range rec.events {
		if e.Kind == progress.KindPercent {
			percents = append(percents, e.Percent)
		}
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("unexpected percent events %v", percents)
	}
}

func TestStartAnalyzerFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnalyzerScript("echo boom >&2\nexit 2\n"))
	dir := t.TempDir()
	book := testsupport.WriteBook(t, dir, "", quoteClocks)
	subs := testsupport.WriteSubtitles(t, dir, testsupport.EvenLines(quoteClocks)...)

	rec := &recorder{}
	_, err := coordinator.New(cfg, nil).Start(context.Background(), coordinator.Request{
		Book:      parser.FileSource(book),
		Subtitles: parser.FileSource(subs),
		Pipeline:  pipeline("external", "stream"),
		Sink:      rec,
	})
	if !errors.Is(err, services.ErrSubprocess) {
		t.Fatalf("expected subprocess error, got %v", err)
	}
	if res := rec.result(t); res.ErrorKind != "subprocess" {
		t.Fatalf("unexpected result %+v", res)
	}
}
