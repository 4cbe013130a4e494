package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"booksync/internal/model"
	"booksync/internal/services"
)

// Input is the preprocessed material of one run.
type Input struct {
	Quotes    []model.Quote
	Subtitles []model.SubtitleLine
	Params    Params
}

// Matcher produces the candidate MatchSet for one run. report receives
// non-decreasing percentages in [0,100] and may be nil.
type Matcher interface {
	Name() string
	Match(ctx context.Context, in Input, report func(percent int)) (model.MatchSet, error)
}

// Deps carries the collaborators some matchers need.
type Deps struct {
	Analyzer Analyzer
	Logger   *slog.Logger
}

// Names of the built-in matchers.
const (
	NameOverlap  = "overlap"
	NameCosine   = "cosine"
	NameExternal = "external"
)

// Lookup resolves a matcher by name.
func Lookup(name string, deps Deps) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameOverlap:
		return NewWordOverlap(OverlapScorer{}, deps.Logger), nil
	case NameCosine:
		return NewWordOverlap(CosineScorer{}, deps.Logger), nil
	case NameExternal:
		if deps.Analyzer == nil {
			return nil, services.Wrap(services.ErrConfiguration, "matcher", "lookup", "external matcher requires an analyzer command", nil)
		}
		return NewExternal(deps.Analyzer, deps.Logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "matcher", "lookup", fmt.Sprintf("unknown matcher %q", name), nil)
	}
}

func reporter(report func(int)) func(int) {
	if report == nil {
		return func(int) {}
	}
	last := -1
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent < last {
			return
		}
		last = percent
		report(percent)
	}
}
