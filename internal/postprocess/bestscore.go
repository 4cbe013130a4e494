package postprocess

import (
	"context"

	"booksync/internal/model"
)

// BestScore keeps, for every subtitle line, only the matches that reach that
// line's highest score.
type BestScore struct{}

// Name implements Filter.
func (BestScore) Name() string { return NameBestScore }

// Filter implements Filter.
func (BestScore) Filter(_ context.Context, set model.MatchSet) (model.MatchSet, error) {
	best := make(map[int]float64)
	for _, m := range set {
		if cur, ok := best[m.SubtitleIndex]; !ok || m.Score > cur {
			best[m.SubtitleIndex] = m.Score
		}
	}
	return set.Subset(func(_ int, m model.Match) bool {
		return m.Score >= best[m.SubtitleIndex]
	}), nil
}
