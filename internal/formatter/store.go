package formatter

import (
	"context"
	"errors"
	"fmt"

	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/store"
)

// StoreFormatter writes the final matches into the result store.
type StoreFormatter struct {
	Store *store.Store
}

// Name implements Formatter.
func (f *StoreFormatter) Name() string { return NameStore }

// Format implements Formatter. The reference is "run:<id>".
func (f *StoreFormatter) Format(ctx context.Context, res Result, sink progress.Sink) (string, error) {
	if _, err := f.Store.GetRun(ctx, res.RunID); errors.Is(err, store.ErrNotFound) {
		if err := f.Store.CreateRun(ctx, store.Run{ID: res.RunID, Title: res.Title, Pipeline: res.Pipeline, CreatedAt: res.CreatedAt}); err != nil {
			return "", services.Wrap(services.ErrTransient, "formatter", "store", "create run", err)
		}
	} else if err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "store", "load run", err)
	}

	records := Records(res)
	rows := make([]store.MatchRecord, len(records))
	for i, rec := range records {
		m := res.Matches[i]
		rows[i] = store.MatchRecord{
			QuoteIndex:    rec.QuoteIndex,
			SubtitleIndex: rec.SubtitleIndex,
			From:          m.From,
			Score:         rec.Score,
			Scene:         rec.Scene,
			Merged:        rec.Merged,
			QuoteText:     rec.Quote,
			SubtitleText:  rec.Subtitle,
		}
	}
	if err := f.Store.SaveMatches(ctx, res.RunID, rows); err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "store", "save matches", err)
	}
	progress.Message(sink, "formatting", fmt.Sprintf("Stored %d matches", len(rows)))
	return "run:" + res.RunID, nil
}
