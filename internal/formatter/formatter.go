// Package formatter turns the final MatchSet of a run into its output: a JSON
// document on disk, rows in the result store, or a stream of content events.
package formatter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booksync/internal/config"
	"booksync/internal/model"
	"booksync/internal/parser"
	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/store"
)

// Result is everything a formatter may render. Match indices refer to
// positions in Quotes and Subtitles.
type Result struct {
	RunID     string
	Title     string
	Pipeline  config.Pipeline
	Quotes    []model.Quote
	Subtitles []model.SubtitleLine
	Matches   model.MatchSet
	CreatedAt time.Time
}

// Formatter renders a result and returns a reference to it.
type Formatter interface {
	Name() string
	Format(ctx context.Context, res Result, sink progress.Sink) (string, error)
}

// Record is the serialized form of one match.
type Record struct {
	QuoteIndex    int     `json:"quote_index"`
	SubtitleIndex int     `json:"subtitle_index"`
	From          string  `json:"from"`
	FromMillis    int64   `json:"from_ms"`
	Score         float64 `json:"score"`
	Scene         int     `json:"scene"`
	Merged        int     `json:"merged,omitempty"`
	Quote         string  `json:"quote,omitempty"`
	Subtitle      string  `json:"subtitle,omitempty"`
}

// Records converts the matches of res, attaching the texts they join.
func Records(res Result) []Record {
	out := make([]Record, len(res.Matches))
	for i, m := range res.Matches {
		rec := Record{
			QuoteIndex:    m.QuoteIndex,
			SubtitleIndex: m.SubtitleIndex,
			From:          parser.FormatTimecode(m.From),
			FromMillis:    m.From.Milliseconds(),
			Score:         m.Score,
			Scene:         m.Scene,
			Merged:        m.Merged,
		}
		if m.QuoteIndex >= 0 && m.QuoteIndex < len(res.Quotes) {
			rec.Quote = res.Quotes[m.QuoteIndex].Text
		}
		if m.SubtitleIndex >= 0 && m.SubtitleIndex < len(res.Subtitles) {
			rec.Subtitle = res.Subtitles[m.SubtitleIndex].Text
		}
		out[i] = rec
	}
	return out
}

// Deps carries the collaborators formatters need.
type Deps struct {
	OutputDir string
	Store     *store.Store
}

// Names of the built-in formatters.
const (
	NameJSON   = "json"
	NameStore  = "store"
	NameStream = "stream"
)

// Lookup resolves a formatter by name.
func Lookup(name string, deps Deps) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameJSON:
		if strings.TrimSpace(deps.OutputDir) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "formatter", "lookup", "json formatter requires an output directory", nil)
		}
		return &JSONFile{Dir: deps.OutputDir}, nil
	case NameStore:
		if deps.Store == nil {
			return nil, services.Wrap(services.ErrConfiguration, "formatter", "lookup", "store formatter requires a result store", nil)
		}
		return &StoreFormatter{Store: deps.Store}, nil
	case NameStream:
		return Stream{}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "formatter", "lookup", fmt.Sprintf("unknown formatter %q", name), nil)
	}
}
