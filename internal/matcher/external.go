package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"booksync/internal/logging"
	"booksync/internal/model"
	"booksync/internal/services"
)

// External delegates matching to an Analyzer and validates what comes back.
type External struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewExternal wraps an analyzer as a Matcher.
func NewExternal(analyzer Analyzer, logger *slog.Logger) *External {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &External{analyzer: analyzer, logger: logger}
}

// Name implements Matcher.
func (e *External) Name() string {
	return NameExternal
}

// Match implements Matcher. Analyzer indices refer to positions in the
// submitted batch and are translated to the units' own indices.
func (e *External) Match(ctx context.Context, in Input, report func(int)) (model.MatchSet, error) {
	emit := reporter(report)
	out := model.MatchSet{}
	if len(in.Quotes) == 0 || len(in.Subtitles) == 0 {
		emit(100)
		return out, nil
	}

	batch := Batch{
		Quotes:    make([]string, len(in.Quotes)),
		Subtitles: make([]string, len(in.Subtitles)),
		Params:    in.Params.Vector(),
	}
	for i, q := range in.Quotes {
		batch.Quotes[i] = q.Text
	}
	for i, s := range in.Subtitles {
		batch.Subtitles[i] = s.Text
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := e.analyzer.Submit(ctx, batch)
	if err != nil {
		return nil, err
	}

	seen := make(map[[2]int]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				emit(100)
				e.logger.Debug("external analysis complete", logging.Int("matches", len(out)))
				return out, nil
			}
			switch ev.Kind {
			case EventFailure:
				return nil, ev.Err
			case EventProgress:
				emit(ev.Percent)
			case EventMatch:
				if ev.QuoteIndex < 0 || ev.QuoteIndex >= len(in.Quotes) || ev.SubtitleIndex < 0 || ev.SubtitleIndex >= len(in.Subtitles) {
					return nil, services.Wrap(services.ErrSubprocess, "analyzer", "decode",
						fmt.Sprintf("match (quote %d, subtitle %d) out of range", ev.QuoteIndex, ev.SubtitleIndex), nil)
				}
				if ev.Score < 0 || ev.Score > 1 {
					return nil, services.Wrap(services.ErrSubprocess, "analyzer", "decode",
						fmt.Sprintf("score %v outside [0,1]", ev.Score), nil)
				}
				key := [2]int{ev.QuoteIndex, ev.SubtitleIndex}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				line := in.Subtitles[ev.SubtitleIndex]
				out = append(out, model.Match{
					QuoteIndex:    in.Quotes[ev.QuoteIndex].Index,
					SubtitleIndex: line.Index,
					From:          line.From,
					Score:         ev.Score,
					Scene:         line.Scene,
				})
			}
		}
	}
}
