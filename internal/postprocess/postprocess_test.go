package postprocess

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksync/internal/model"
	"booksync/internal/services"
)

// walkQuotes builds one match per subtitle line with the given quote indices.
func walkQuotes(quoteIndices ...int) model.MatchSet {
	set := make(model.MatchSet, len(quoteIndices))
	for i, q := range quoteIndices {
		set[i] = model.Match{QuoteIndex: q, SubtitleIndex: i, Score: 0.8, Scene: model.NoScene}
	}
	return set
}

func quoteValues(set model.MatchSet) []int {
	out := make([]int, len(set))
	for i, m := range set {
		out[i] = m.QuoteIndex
	}
	return out
}

func TestTimelineRemovesLonelyJumps(t *testing.T) {
	set := walkQuotes(10, 11, 500, 12, 13, 1000)
	got, err := NewTimeline(AxisQuote).Filter(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12, 13}, quoteValues(got))
	assert.True(t, got.IsSubsequenceOf(set))
}

func TestTimelineAcceptsSupportedJump(t *testing.T) {
	set := walkQuotes(100, 102, 170, 171, 172, 173, 174, 175, 1000)
	got, err := NewTimeline(AxisQuote).Filter(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 102, 170, 171, 172, 173, 174, 175}, quoteValues(got))
}

func TestTimelineRejectsUnsupportedJump(t *testing.T) {
	set := walkQuotes(100, 102, 170, 103, 104, 105, 106, 107, 1000)
	got, err := NewTimeline(AxisQuote).Filter(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 102, 103, 104, 105, 106, 107}, quoteValues(got))
}

func TestTimelineSubtitleAxis(t *testing.T) {
	set := model.MatchSet{
		{QuoteIndex: 0, SubtitleIndex: 5},
		{QuoteIndex: 1, SubtitleIndex: 6},
		{QuoteIndex: 2, SubtitleIndex: 300},
		{QuoteIndex: 3, SubtitleIndex: 7},
	}
	f := NewTimeline(AxisSubtitle)
	assert.Equal(t, NameSubtitleTimeline, f.Name())
	got, err := f.Filter(context.Background(), set)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 7, got[2].SubtitleIndex)
}

func TestTimelineKeepsOrderedSets(t *testing.T) {
	evens := make([]int, 0, 16)
	for q := 0; q <= 30; q += 2 {
		evens = append(evens, q)
	}
	tests := map[string][]int{
		"ten consecutive":   {0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		"steps of two":      evens,
		"short offset walk": {3, 4, 5},
	}
	for name, quotes := range tests {
		t.Run(name, func(t *testing.T) {
			set := walkQuotes(quotes...)
			for _, axis := range []Axis{AxisQuote, AxisSubtitle} {
				got, err := NewTimeline(axis).Filter(context.Background(), set)
				require.NoError(t, err)
				assert.Equal(t, set, got)
			}
		})
	}
}

func TestTimelineSmallSetDropsFarJump(t *testing.T) {
	set := walkQuotes(0, 1, 2, 3, 40, 4, 5, 6, 7, 8)
	got, err := NewTimeline(AxisQuote).Filter(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, quoteValues(got))
}

func TestTimelineEmptySet(t *testing.T) {
	got, err := NewTimeline(AxisQuote).Filter(context.Background(), model.MatchSet{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSceneVoteKeepsBestCluster(t *testing.T) {
	set := model.MatchSet{
		{QuoteIndex: 10, SubtitleIndex: 0, Score: 0.8, Scene: 1},
		{QuoteIndex: 500, SubtitleIndex: 1, Score: 0.45, Scene: 1},
		{QuoteIndex: 11, SubtitleIndex: 2, Score: 0.7, Scene: 1},
		{QuoteIndex: 500, SubtitleIndex: 3, Score: 0.45, Scene: 1},
		{QuoteIndex: 12, SubtitleIndex: 4, Score: 0.6, Scene: 2},
		{QuoteIndex: 800, SubtitleIndex: 5, Score: 1, Scene: 2},
		{QuoteIndex: 900, SubtitleIndex: 6, Score: 0.9, Scene: model.NoScene},
	}
	got, err := NewSceneVote().Filter(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11, 12, 900}, quoteValues(got))
	assert.True(t, got.IsSubsequenceOf(set))
}

func TestSceneVoteKeepsTiedClusters(t *testing.T) {
	set := model.MatchSet{
		{QuoteIndex: 10, SubtitleIndex: 0, Score: 0.7, Scene: 1},
		{QuoteIndex: 400, SubtitleIndex: 1, Score: 0.7, Scene: 1},
	}
	got, err := NewSceneVote().Filter(context.Background(), set)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBestScorePerSubtitle(t *testing.T) {
	set := model.MatchSet{
		{QuoteIndex: 0, SubtitleIndex: 0, Score: 0.7},
		{QuoteIndex: 1, SubtitleIndex: 0, Score: 0.9},
		{QuoteIndex: 2, SubtitleIndex: 0, Score: 0.9},
		{QuoteIndex: 3, SubtitleIndex: 1, Score: 0.61},
	}
	got, err := BestScore{}.Filter(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, quoteValues(got))
}

type fakeFilter struct {
	name string
	fn   func(model.MatchSet) (model.MatchSet, error)
}

func (f fakeFilter) Name() string { return f.name }
func (f fakeFilter) Filter(_ context.Context, set model.MatchSet) (model.MatchSet, error) {
	return f.fn(set)
}

func TestChainRun(t *testing.T) {
	set := walkQuotes(1, 2, 3)

	got, err := Chain{}.Run(context.Background(), set, nil)
	require.NoError(t, err)
	assert.Equal(t, set, got)

	var observed []string
	dropFirst := fakeFilter{name: "dropfirst", fn: func(s model.MatchSet) (model.MatchSet, error) { return s[1:].Clone(), nil }}
	got, err = Chain{dropFirst, dropFirst}.Run(context.Background(), set, func(i int, name string, before, after int) {
		observed = append(observed, name)
		assert.Equal(t, before-1, after)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, quoteValues(got))
	assert.Equal(t, []string{"dropfirst", "dropfirst"}, observed)
}

func TestChainRejectsFailuresAndGrowth(t *testing.T) {
	set := walkQuotes(1, 2, 3)
	tests := []struct {
		name   string
		filter Filter
	}{
		{name: "error", filter: fakeFilter{name: "boom", fn: func(model.MatchSet) (model.MatchSet, error) { return nil, errors.New("boom") }}},
		{name: "duplicate", filter: fakeFilter{name: "dup", fn: func(s model.MatchSet) (model.MatchSet, error) { return append(s.Clone(), s[0]), nil }}},
		{name: "reorder", filter: fakeFilter{name: "rev", fn: func(s model.MatchSet) (model.MatchSet, error) {
			return model.MatchSet{s[2], s[1], s[0]}, nil
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Chain{tt.filter}.Run(context.Background(), set, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, services.ErrStage)
			assert.Contains(t, err.Error(), tt.filter.Name())
		})
	}
}

func TestLookup(t *testing.T) {
	chain, err := Lookup([]string{"quotetimeline", " SceneVote ", "bestscore"})
	require.NoError(t, err)
	assert.Equal(t, []string{NameQuoteTimeline, NameSceneVote, NameBestScore}, chain.Names())

	_, err = Lookup([]string{"nope"})
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
