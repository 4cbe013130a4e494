package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"booksync/internal/config"
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

// Run is the context object of one alignment run.
type Run struct {
	ID string

	cfg      *config.Config
	pipeline config.Pipeline
	sink     progress.Sink
	logger   *slog.Logger
	store    *store.Store

	pre     preprocess.Chain
	matcher matcher.Matcher
	params  matcher.Params
	post    postprocess.Chain
	format  formatter.Formatter

	createdAt time.Time

	sampleMu sync.Mutex
	sampler  *logging.ProgressSampler

	mu        sync.Mutex
	state     State
	title     string
	book      *parser.Book
	subtitles []model.SubtitleLine
	hasLines  bool
	outcome   Outcome

	triggered atomic.Bool
}

// State reports the lifecycle position of the run.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Outcome returns the result of a completed run.
func (r *Run) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.outcome
	out.RunID = r.ID
	if out.Title == "" {
		out.Title = r.title
	}
	return out
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// DeliverBook records the parsed book. It reports whether this call ran the
// pipeline; a repeated delivery is ignored.
func (r *Run) DeliverBook(ctx context.Context, book parser.Book) (bool, error) {
	r.mu.Lock()
	if r.book != nil {
		r.mu.Unlock()
		r.logger.Debug("book already delivered; ignoring", logging.String(logging.FieldEventType, "duplicate_delivery"))
		return false, nil
	}
	r.book = &book
	ready := r.hasLines
	r.mu.Unlock()
	return r.trigger(ctx, ready)
}

// DeliverSubtitles records the parsed subtitle lines. It reports whether this
// call ran the pipeline; a repeated delivery is ignored.
func (r *Run) DeliverSubtitles(ctx context.Context, lines []model.SubtitleLine) (bool, error) {
	r.mu.Lock()
	if r.hasLines {
		r.mu.Unlock()
		r.logger.Debug("subtitles already delivered; ignoring", logging.String(logging.FieldEventType, "duplicate_delivery"))
		return false, nil
	}
	r.subtitles = lines
	r.hasLines = true
	ready := r.book != nil
	r.mu.Unlock()
	return r.trigger(ctx, ready)
}

func (r *Run) trigger(ctx context.Context, ready bool) (bool, error) {
	if !ready {
		return false, nil
	}
	if !r.triggered.CompareAndSwap(false, true) {
		r.logger.Debug("matching already triggered; ignoring", logging.String(logging.FieldEventType, "duplicate_trigger"))
		return false, nil
	}
	return true, r.synchronize(ctx)
}

// synchronize runs matching, postprocessing and formatting over the
// delivered inputs.
func (r *Run) synchronize(ctx context.Context) error {
	r.mu.Lock()
	book := *r.book
	lines := r.subtitles
	if r.title == "" {
		r.title = book.Title
	}
	title := r.title
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpdateCounts(ctx, r.ID, len(book.Quotes), len(lines)); err != nil {
			logging.WarnWithContext(r.logger, "failed to record input sizes", "store_update_failed", logging.Error(err))
		}
	}

	lines = model.AssignScenes(lines, r.cfg.SceneGap())

	prepCtx := services.WithStage(ctx, "preprocess")
	quotes, quoteOrigin, err := r.pre.Quotes(prepCtx, book.Quotes)
	if err != nil {
		return err
	}
	subs, lineOrigin, err := r.pre.Subtitles(prepCtx, lines)
	if err != nil {
		return err
	}
	r.logger.Debug(
		"inputs preprocessed",
		logging.Int("quotes", len(book.Quotes)),
		logging.Int("quotes_kept", len(quotes)),
		logging.Int("subtitles", len(lines)),
		logging.Int("subtitles_kept", len(subs)),
		logging.Int("scenes", model.SceneCount(lines)),
	)

	r.setState(StateMatching)
	r.phase(PhaseSynchronizing, fmt.Sprintf("Synchronizing %d quotes with %d subtitle lines", len(quotes), len(subs)))
	set, err := r.matcher.Match(services.WithStage(ctx, "match"), matcher.Input{
		Quotes:    quotes,
		Subtitles: subs,
		Params:    r.params,
	}, r.reportPercent)
	if err != nil {
		return err
	}
	if err := set.Validate(len(quotes), len(subs)); err != nil {
		return services.Wrap(services.ErrStage, "match", r.matcher.Name(), "invalid match set", err)
	}

	if len(r.post) > 0 {
		r.setState(StatePostprocessing)
		r.phase(PhasePostprocessing, fmt.Sprintf("Filtering %d matches", len(set)))
		stageLogger := logging.WithContext(services.WithStage(ctx, "postprocess"), r.logger)
		set, err = r.post.Run(ctx, set, func(index int, name string, before, after int) {
			stageLogger.Info(
				"filter applied",
				logging.Int("index", index),
				logging.String("filter", name),
				logging.Int("before", before),
				logging.Int("after", after),
			)
		})
		if err != nil {
			return err
		}
	}

	set = translate(set, quoteOrigin, lineOrigin)

	r.setState(StateFormatting)
	r.phase(PhaseFormatting, fmt.Sprintf("Formatting %d matches with %s", len(set), r.format.Name()))
	ref, err := r.format.Format(services.WithStage(ctx, "format"), formatter.Result{
		RunID:     r.ID,
		Title:     title,
		Pipeline:  r.pipeline,
		Quotes:    book.Quotes,
		Subtitles: lines,
		Matches:   set,
		CreatedAt: r.createdAt,
	}, r.sink)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.outcome = Outcome{
		Title:     title,
		Ref:       ref,
		Matches:   set,
		Quotes:    len(book.Quotes),
		Subtitles: len(lines),
	}
	r.state = StateDone
	r.mu.Unlock()
	return nil
}

// translate maps preprocessed indices back to parser indices. Origins are
// ascending, so order is kept.
func translate(set model.MatchSet, quoteOrigin, lineOrigin []int) model.MatchSet {
	out := set.Clone()
	for i := range out {
		out[i].QuoteIndex = quoteOrigin[out[i].QuoteIndex]
		out[i].SubtitleIndex = lineOrigin[out[i].SubtitleIndex]
	}
	return out
}

func (r *Run) phase(name, message string) {
	progress.Message(r.sink, name, message)
	r.sampleMu.Lock()
	log := r.sampler.ShouldLog(-1, name)
	r.sampleMu.Unlock()
	if log {
		r.logger.Info(message, logging.String(logging.FieldProgressPhase, name))
	}
}

func (r *Run) reportPercent(percent int) {
	progress.Percent(r.sink, PhaseSynchronizing, percent)
	r.sampleMu.Lock()
	log := r.sampler.ShouldLog(percent, PhaseSynchronizing)
	r.sampleMu.Unlock()
	if log {
		r.logger.Debug("synchronizing", logging.Int(logging.FieldProgressPercent, percent))
	}
}
