package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"booksync/internal/config"
	"booksync/internal/deps"
	"booksync/internal/formatter"
	"booksync/internal/logging"
	"booksync/internal/matcher"
	"booksync/internal/model"
	"booksync/internal/parser"
	"booksync/internal/postprocess"
	"booksync/internal/preprocess"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/store"
)

// Request starts one alignment run.
type Request struct {
	Book      parser.Source
	Subtitles parser.Source
	// Pipeline selects the stages; a pipeline without a matcher falls back to
	// the configured one.
	Pipeline config.Pipeline
	Sink     progress.Sink
	Title    string
	// RunID reuses an identifier chosen by the caller. Empty generates one.
	RunID string
}

// Outcome describes a finished run. Match indices refer to the parsed
// (not preprocessed) quote and subtitle sequences.
type Outcome struct {
	RunID     string
	Title     string
	Ref       string
	Matches   model.MatchSet
	Quotes    int
	Subtitles int
}

// Coordinator builds and executes runs.
type Coordinator struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	analyzer matcher.Analyzer
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithStore records runs in st and enables the "store" formatter.
func WithStore(st *store.Store) Option {
	return func(c *Coordinator) {
		c.store = st
	}
}

// WithAnalyzer overrides the analyzer used by the "external" matcher.
func WithAnalyzer(a matcher.Analyzer) Option {
	return func(c *Coordinator) {
		c.analyzer = a
	}
}

// New constructs a coordinator. cfg is copied; later changes do not affect it.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		cfg:    cfg.Clone(),
		logger: logging.NewComponentLogger(logger, "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs req to completion and returns its outcome. Configuration errors
// are returned before any event is emitted; every later failure is reported
// through a terminal result event as well as the returned error.
func (c *Coordinator) Start(ctx context.Context, req Request) (Outcome, error) {
	run, err := c.NewRun(req)
	if err != nil {
		return Outcome{}, err
	}
	return run.Execute(ctx, req.Book, req.Subtitles)
}

// NewRun resolves every stage of the request pipeline and returns an idle run.
func (c *Coordinator) NewRun(req Request) (*Run, error) {
	pipeline := req.Pipeline.Clone()
	if strings.TrimSpace(pipeline.Matcher) == "" {
		pipeline = c.cfg.Pipeline.Clone()
	}
	if strings.TrimSpace(pipeline.Formatter) == "" {
		pipeline.Formatter = c.cfg.Pipeline.Formatter
	}

	pre, err := preprocess.Lookup(pipeline.Preprocessors)
	if err != nil {
		return nil, err
	}
	params, err := matcher.ParamsFromVector(pipeline.Params)
	if err != nil {
		return nil, err
	}
	analyzer, err := c.analyzerFor(pipeline.Matcher)
	if err != nil {
		return nil, err
	}
	m, err := matcher.Lookup(pipeline.Matcher, matcher.Deps{
		Analyzer: analyzer,
		Logger:   c.logger,
	})
	if err != nil {
		return nil, err
	}
	post, err := postprocess.Lookup(pipeline.Postprocessors)
	if err != nil {
		return nil, err
	}
	f, err := formatter.Lookup(pipeline.Formatter, formatter.Deps{
		OutputDir: c.cfg.Paths.OutputDir,
		Store:     c.store,
	})
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.RunID)
	if id == "" {
		id = uuid.NewString()
	}
	sink := req.Sink
	if sink == nil {
		sink = progress.Discard
	}
	logger := logging.WithContext(services.WithRunID(context.Background(), id), c.logger)

	return &Run{
		ID:        id,
		cfg:       c.cfg.Clone(),
		pipeline:  pipeline,
		title:     strings.TrimSpace(req.Title),
		sink:      runSink{id: id, next: sink},
		logger:    logger,
		sampler:   logging.NewProgressSampler(10),
		store:     c.store,
		pre:       pre,
		matcher:   m,
		params:    params,
		post:      post,
		format:    f,
		createdAt: time.Now().UTC(),
	}, nil
}

// analyzerFor resolves the analyzer of the external matcher. A configured
// command must name an executable that can be found now, not when matching
// starts.
func (c *Coordinator) analyzerFor(name string) (matcher.Analyzer, error) {
	if !strings.EqualFold(strings.TrimSpace(name), matcher.NameExternal) {
		return nil, nil
	}
	if c.analyzer != nil {
		return c.analyzer, nil
	}
	if strings.TrimSpace(c.cfg.Analyzer.Command) == "" {
		return nil, nil
	}
	statuses := deps.CheckBinaries([]deps.Requirement{{Name: "analyzer", Command: c.cfg.Analyzer.Command}})
	if missing := deps.Missing(statuses); len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "coordinator", "resolve analyzer", missing[0].Detail, nil)
	}
	a, err := matcher.NewProcessAnalyzer(
		c.cfg.Analyzer.Command,
		c.cfg.Analyzer.Args,
		c.cfg.AnalyzerTimeout(),
		matcher.WithAnalyzerLogger(logging.NewComponentLogger(c.logger, "analyzer")),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Execute parses both sources concurrently and delivers each result as soon
// as it is ready. The delivery that completes the pair runs the pipeline.
func (r *Run) Execute(ctx context.Context, book, subtitles parser.Source) (Outcome, error) {
	ctx = services.WithRunID(ctx, r.ID)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		r.logger = r.logger.With(logging.String(logging.FieldCorrelationID, rid))
	}
	err := r.begin(ctx, book, subtitles)
	if err == nil {
		r.setState(StateParsing)
		r.phase(PhaseParsing, fmt.Sprintf("Parsing %s and %s", book.Name(), subtitles.Name()))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			b, err := parser.ReadBook(services.WithStage(gctx, "parse"), book)
			if err != nil {
				return err
			}
			_, err = r.DeliverBook(gctx, b)
			return err
		})
		g.Go(func() error {
			lines, err := parser.ReadSubtitles(services.WithStage(gctx, "parse"), subtitles)
			if err != nil {
				return err
			}
			_, err = r.DeliverSubtitles(gctx, lines)
			return err
		})
		err = g.Wait()
		if err == nil && !r.triggered.Load() {
			err = services.Wrap(services.ErrStage, "coordinator", "join", "parse results incomplete", nil)
		}
	}
	r.finish(ctx, err)
	return r.Outcome(), err
}

func (r *Run) begin(ctx context.Context, book, subtitles parser.Source) error {
	if book == nil || subtitles == nil {
		return services.Wrap(services.ErrConfiguration, "coordinator", "start", "book and subtitle sources are required", nil)
	}
	r.logger.Info(
		"run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("book", book.Name()),
		logging.String("subtitles", subtitles.Name()),
		logging.String("matcher", r.matcher.Name()),
		logging.String("formatter", r.format.Name()),
	)
	if r.store == nil {
		return nil
	}
	err := r.store.CreateRun(ctx, store.Run{
		ID:             r.ID,
		Title:          r.title,
		BookSource:     book.Name(),
		SubtitleSource: subtitles.Name(),
		Pipeline:       r.pipeline,
		CreatedAt:      r.createdAt,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "coordinator", "start", "record run", err)
	}
	return nil
}

func (r *Run) finish(ctx context.Context, err error) {
	persistCtx := context.WithoutCancel(ctx)
	res := progress.Result{RunID: r.ID}
	if err != nil {
		r.setState(StateFailed)
		res.Error = err.Error()
		res.ErrorKind = services.Kind(err)
		logging.ErrorWithContext(r.logger, "run failed", "run_failed",
			logging.String(logging.FieldErrorKind, res.ErrorKind),
			logging.Error(err),
		)
		if r.store != nil {
			if ferr := r.store.FailRun(persistCtx, r.ID, res.Error, res.ErrorKind); ferr != nil {
				logging.WarnWithContext(r.logger, "failed to record run failure", "store_update_failed", logging.Error(ferr))
			}
		}
		progress.Finish(r.sink, res)
		return
	}

	out := r.Outcome()
	res.Ref = out.Ref
	res.Matches = len(out.Matches)
	r.phase(PhaseFinished, fmt.Sprintf("Finished with %d matches", res.Matches))
	r.logger.Info(
		"run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("matches", res.Matches),
		logging.String("result_ref", res.Ref),
		logging.Duration("elapsed", time.Since(r.createdAt)),
	)
	if r.store != nil {
		if ferr := r.store.FinishRun(persistCtx, r.ID, res.Ref, res.Matches); ferr != nil {
			logging.WarnWithContext(r.logger, "failed to record run result", "store_update_failed", logging.Error(ferr))
		}
	}
	progress.Finish(r.sink, res)
}

// runSink stamps the run id on every event.
type runSink struct {
	id   string
	next progress.Sink
}

func (s runSink) Emit(e progress.Event) {
	if e.RunID == "" {
		e.RunID = s.id
	}
	s.next.Emit(e)
}
