package matcher

import "booksync/internal/textutil"

// Scorer compares two word lists. matching is the number of paired words and
// drives the minimum-word threshold regardless of how score is computed.
type Scorer interface {
	Name() string
	Score(quote, subtitle []string) (score float64, matching int)
}

// OverlapScorer averages the matching share of both sides.
type OverlapScorer struct{}

// Name implements Scorer.
func (OverlapScorer) Name() string { return NameOverlap }

// Score implements Scorer.
func (OverlapScorer) Score(quote, subtitle []string) (float64, int) {
	matching := textutil.OverlapCount(quote, subtitle)
	return textutil.OverlapScore(matching, len(quote), len(subtitle)), matching
}

// CosineScorer measures term-frequency cosine similarity.
type CosineScorer struct{}

// Name implements Scorer.
func (CosineScorer) Name() string { return NameCosine }

// Score implements Scorer.
func (CosineScorer) Score(quote, subtitle []string) (float64, int) {
	matching := textutil.OverlapCount(quote, subtitle)
	if matching == 0 {
		return 0, 0
	}
	score := textutil.CosineSimilarity(textutil.FingerprintFromWords(quote), textutil.FingerprintFromWords(subtitle))
	if score > 1 {
		score = 1
	}
	return score, matching
}
