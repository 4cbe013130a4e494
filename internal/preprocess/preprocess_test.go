package preprocess_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksync/internal/model"
	"booksync/internal/preprocess"
	"booksync/internal/services"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tags", "<i>Call me</i> Ishmael.", "Call me Ishmael."},
		{"escaped break", `first line\nsecond line`, "first line second line"},
		{"real whitespace", "  spaced \t out\n\nwords ", "spaced out words"},
		{"dialogue dash", "- Where are you? - Here.", "Where are you? Here."},
		{"hyphen kept", "a well-known fact", "a well-known fact"},
		{"em dash", "wait—what", "wait what"},
		{"typographic apostrophe", "don’t stop", "don't stop"},
		{"no words", "<br/> - ... !", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preprocess.Clean(tt.input))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"<i>Hello</i>,   world!! -- said  he",
		"<<b>a>word</b> - - x",
		`line\n\nbreak <font color="red">red</font>`,
		"It’s a—test – of ‘quotes’ and -dashes-",
		`Hello\<i>nworld`,
		`a\<b>\<i>nn`,
		"cafe<i></i>\u0301",
		"Café  crèmé",
	}
	for _, in := range inputs {
		once := preprocess.Clean(in)
		assert.Equal(t, once, preprocess.Clean(once), "input %q", in)
	}
}

func TestCleanJoinsEscapedBreaksAfterTags(t *testing.T) {
	assert.Equal(t, "Hello world", preprocess.Clean(`Hello\<i>nworld`))
	assert.Equal(t, "café", preprocess.Clean("cafe<i></i>\u0301"))
}

func TestRemovePunctuation(t *testing.T) {
	assert.Equal(t, "Where are you Here", preprocess.RemovePunctuation("Where are you? Here."))
	assert.Equal(t, "don't well-known", preprocess.RemovePunctuation("don't, well-known!"))
	assert.Equal(t, "", preprocess.RemovePunctuation("?!..."))
}

func TestRemoveStopwords(t *testing.T) {
	out, err := preprocess.RemoveStopwords("The whale was in THE sea")
	require.NoError(t, err)
	assert.Equal(t, "whale sea", out)

	out, err = preprocess.RemoveStopwords("it is what it is")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestExpandContractions(t *testing.T) {
	out, err := preprocess.ExpandContractions("I'm sure you won't go")
	require.NoError(t, err)
	assert.Equal(t, "i am sure you will not go", out)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "run jump cat", preprocess.Stem("running jumped cats"))
}

func TestChainShortCircuitsOnEmpty(t *testing.T) {
	calls := 0
	chain := preprocess.Chain{
		preprocess.Func("drop", func(string) (string, error) { return "", nil }),
		preprocess.Func("count", func(s string) (string, error) { calls++; return s, nil }),
	}
	out, err := chain.Apply("anything")
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Zero(t, calls, "stages after a drop must not run")
}

func TestChainAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	chain := preprocess.Chain{
		preprocess.Func("upper", func(s string) (string, error) { return s + "!", nil }),
		preprocess.Func("broken", func(string) (string, error) { return "", boom }),
		preprocess.Func("count", func(s string) (string, error) { calls++; return s, nil }),
	}
	_, err := chain.Apply("text")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrStage)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Zero(t, calls)
}

func TestEmptyChainPassesThrough(t *testing.T) {
	out, err := preprocess.Chain(nil).Apply("  as is ")
	require.NoError(t, err)
	assert.Equal(t, "  as is ", out)
}

func TestLookup(t *testing.T) {
	chain, err := preprocess.Lookup([]string{"clean", "punctuation", "stopwords", "contractions", "stem"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "punctuation", "stopwords", "contractions", "stem"}, chain.Names())

	_, err = preprocess.Lookup([]string{"clean", "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestQuotesDropsAndReindexes(t *testing.T) {
	chain, err := preprocess.Lookup([]string{"clean"})
	require.NoError(t, err)
	quotes := []model.Quote{
		{Index: 0, Text: "<i>First</i> quote", Paragraph: 0},
		{Index: 1, Text: "<br>", Paragraph: 0},
		{Index: 2, Text: "Third   quote", Paragraph: 1},
	}
	out, origin, err := chain.Quotes(context.Background(), quotes)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []int{0, 2}, origin)
	assert.Equal(t, model.Quote{Index: 1, Text: "Third quote", Paragraph: 1}, out[1])
	assert.Equal(t, "<i>First</i> quote", quotes[0].Text, "input must not change")
}

func TestSubtitlesKeepsTiming(t *testing.T) {
	chain, err := preprocess.Lookup([]string{"clean", "punctuation"})
	require.NoError(t, err)
	lines := []model.SubtitleLine{
		{Index: 0, Text: "...", Scene: 1},
		{Index: 1, Text: "- Hello there!", From: 1000, To: 2000, Scene: 1},
	}
	out, origin, err := chain.Subtitles(context.Background(), lines)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []int{1}, origin)
	assert.Equal(t, model.SubtitleLine{Index: 0, Text: "Hello there", From: 1000, To: 2000, Scene: 1}, out[0])
}
