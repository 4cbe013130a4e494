package postprocess

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"booksync/internal/model"
	"booksync/internal/services"
)

// Filter removes matches from a MatchSet.
type Filter interface {
	Name() string
	Filter(ctx context.Context, set model.MatchSet) (model.MatchSet, error)
}

// Observer is told about every completed stage.
type Observer func(index int, name string, before, after int)

// Chain applies filters in order.
type Chain []Filter

// Run passes set through every filter. An empty chain returns set unchanged.
// A failing filter, or one whose output is not a subsequence of its input,
// aborts the chain with an ErrStage error.
func (c Chain) Run(ctx context.Context, set model.MatchSet, observe Observer) (model.MatchSet, error) {
	for i, filter := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op := fmt.Sprintf("stage %d (%s)", i, filter.Name())
		out, err := filter.Filter(ctx, set)
		if err != nil {
			return nil, services.Wrap(services.ErrStage, "postprocess", op, "filter failed", err)
		}
		if !out.IsSubsequenceOf(set) {
			return nil, services.Wrap(services.ErrStage, "postprocess", op, "filter added or reordered matches", nil)
		}
		if observe != nil {
			observe(i, filter.Name(), len(set), len(out))
		}
		set = out
	}
	return set, nil
}

// Names lists the filter names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return names
}

// Names of the built-in filters.
const (
	NameQuoteTimeline    = "quotetimeline"
	NameSubtitleTimeline = "subtitletimeline"
	NameSceneVote        = "scenevote"
	NameBestScore        = "bestscore"
)

var builtin = map[string]func() Filter{
	NameQuoteTimeline:    func() Filter { return NewTimeline(AxisQuote) },
	NameSubtitleTimeline: func() Filter { return NewTimeline(AxisSubtitle) },
	NameSceneVote:        func() Filter { return NewSceneVote() },
	NameBestScore:        func() Filter { return BestScore{} },
}

// Lookup builds a chain from filter names.
func Lookup(names []string) (Chain, error) {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		factory, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "postprocess", "lookup",
				fmt.Sprintf("unknown postprocessor %q (available: %s)", name, strings.Join(Available(), ", ")), nil)
		}
		chain = append(chain, factory())
	}
	return chain, nil
}

// Available returns the registered filter names, sorted.
func Available() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
