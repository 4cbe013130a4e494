package preprocess

import (
	"context"
	"fmt"

	"booksync/internal/model"
)

// Quotes applies the chain to every quote. Dropped quotes are removed and the
// survivors are re-indexed densely; origin[i] holds the parser index of the
// i-th returned quote.
func (c Chain) Quotes(ctx context.Context, quotes []model.Quote) (out []model.Quote, origin []int, err error) {
	out = make([]model.Quote, 0, len(quotes))
	origin = make([]int, 0, len(quotes))
	for _, q := range quotes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		text, err := c.Apply(q.Text)
		if err != nil {
			return nil, nil, fmt.Errorf("quote %d: %w", q.Index, err)
		}
		if text == "" {
			continue
		}
		origin = append(origin, q.Index)
		q.Index = len(out)
		q.Text = text
		out = append(out, q)
	}
	return out, origin, nil
}

// Subtitles applies the chain to every subtitle line, with the same dropping
// and re-indexing rules as Quotes. Timing and scene ids are kept.
func (c Chain) Subtitles(ctx context.Context, lines []model.SubtitleLine) (out []model.SubtitleLine, origin []int, err error) {
	out = make([]model.SubtitleLine, 0, len(lines))
	origin = make([]int, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		text, err := c.Apply(line.Text)
		if err != nil {
			return nil, nil, fmt.Errorf("subtitle %d: %w", line.Index, err)
		}
		if text == "" {
			continue
		}
		origin = append(origin, line.Index)
		line.Index = len(out)
		line.Text = text
		out = append(out, line)
	}
	return out, origin, nil
}
