package matcher

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"booksync/internal/logging"
	"booksync/internal/model"
	"booksync/internal/textutil"
)

// WordOverlap is the canonical matching engine. Every quote is compared with
// every subtitle line; windows of consecutive subtitle lines and of
// consecutive quotes are grown while the score strictly improves.
type WordOverlap struct {
	scorer Scorer
	logger *slog.Logger
}

// NewWordOverlap constructs the engine around a scorer. A nil scorer uses
// OverlapScorer.
func NewWordOverlap(scorer Scorer, logger *slog.Logger) *WordOverlap {
	if scorer == nil {
		scorer = OverlapScorer{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WordOverlap{scorer: scorer, logger: logger}
}

// Name implements Matcher.
func (w *WordOverlap) Name() string {
	return w.scorer.Name()
}

// Match implements Matcher.
func (w *WordOverlap) Match(ctx context.Context, in Input, report func(int)) (model.MatchSet, error) {
	emit := reporter(report)
	out := model.MatchSet{}
	if len(in.Quotes) == 0 || len(in.Subtitles) == 0 {
		emit(100)
		return out, nil
	}

	run := newEngineRun(w.scorer, in)
	seen := make(map[[2]int]struct{})
	add := func(qi, si int, score float64, merged int) {
		key := [2]int{qi, si}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		line := in.Subtitles[si]
		out = append(out, model.Match{
			QuoteIndex:    in.Quotes[qi].Index,
			SubtitleIndex: line.Index,
			From:          line.From,
			Score:         score,
			Scene:         line.Scene,
			Merged:        merged,
		})
	}

	anchor := -1
	shortHits := 0
	for qi := range in.Quotes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emit(qi * 100 / len(in.Quotes))

		short := len(run.quoteWords[qi]) < in.Params.MinMatchingWords
		if short && anchor >= 0 && in.Params.WindowEnabled() {
			if hits := run.exactNear(qi, anchor); len(hits) > 0 {
				for _, si := range hits {
					add(qi, si, 1, 0)
				}
				shortHits++
				continue
			}
		}

		best := run.bestForQuote(qi)
		if !best.ok {
			continue
		}
		for k := 0; k < best.quotes; k++ {
			for _, hit := range best.hits {
				for si := hit.start; si < hit.start+hit.span; si++ {
					add(qi+k, si, best.score, best.quotes-1+hit.span-1)
				}
			}
		}
		if !short && best.score >= in.Params.MinAnchorScore {
			last := best.hits[len(best.hits)-1]
			anchor = last.start + last.span - 1
		}
	}
	emit(100)

	w.logger.Debug("matching complete",
		logging.String("scorer", w.scorer.Name()),
		logging.Int("quotes", len(in.Quotes)),
		logging.Int("subtitles", len(in.Subtitles)),
		logging.Int("matches", len(out)),
		logging.Int("short_quote_hits", shortHits),
	)
	return out, nil
}

// windowHit is a run of span consecutive subtitle lines starting at start.
type windowHit struct {
	start int
	span  int
}

type candidate struct {
	ok       bool
	score    float64
	matching int
	quotes   int
	hits     []windowHit
}

type engineRun struct {
	scorer     Scorer
	params     Params
	quoteWords [][]string
	subWords   [][]string
	quoteText  []string
	subText    []string
	buf        []string
}

func newEngineRun(scorer Scorer, in Input) *engineRun {
	r := &engineRun{
		scorer:     scorer,
		params:     in.Params,
		quoteWords: make([][]string, len(in.Quotes)),
		subWords:   make([][]string, len(in.Subtitles)),
		quoteText:  make([]string, len(in.Quotes)),
		subText:    make([]string, len(in.Subtitles)),
	}
	for i, q := range in.Quotes {
		r.quoteWords[i] = textutil.Words(q.Text)
		r.quoteText[i] = strings.Join(r.quoteWords[i], " ")
	}
	for i, s := range in.Subtitles {
		r.subWords[i] = textutil.Words(s.Text)
		r.subText[i] = strings.Join(r.subWords[i], " ")
	}
	return r
}

// exactNear returns the subtitle lines around anchor whose text equals the
// quote, ignoring case.
func (r *engineRun) exactNear(qi, anchor int) []int {
	n := len(r.subText)
	width := int(math.Round(r.params.RelativeWindow * float64(n)))
	lo := max(0, anchor-width)
	hi := min(n, anchor+width)
	var hits []int
	for si := lo; si < hi; si++ {
		if r.subText[si] == r.quoteText[qi] {
			hits = append(hits, si)
		}
	}
	return hits
}

// bestForQuote grows a window of consecutive quotes starting at qi.
func (r *engineRun) bestForQuote(qi int) candidate {
	words := append([]string(nil), r.quoteWords[qi]...)
	cur := r.bestForWords(words)
	cur.quotes = 1
	for size := 2; size <= 1+r.params.MaxQuoteMerges && qi+size-1 < len(r.quoteWords); size++ {
		words = append(words, r.quoteWords[qi+size-1]...)
		next := r.bestForWords(words)
		if !next.ok || !improves(cur.score, next.score, cur.matching, next.matching) {
			break
		}
		next.quotes = size
		cur = next
	}
	return cur
}

// bestForWords finds the subtitle windows with the highest qualifying score.
// Windows that tie with the best are all kept.
func (r *engineRun) bestForWords(quote []string) candidate {
	var best candidate
	for si := range r.subWords {
		score, matching, span := r.bestSubtitleWindow(quote, si)
		if score < r.params.MinScore || matching < r.params.MinMatchingWords {
			continue
		}
		switch {
		case !best.ok || score > best.score:
			best = candidate{ok: true, score: score, matching: matching, hits: []windowHit{{start: si, span: span}}}
		case score == best.score:
			best.hits = append(best.hits, windowHit{start: si, span: span})
			best.matching = max(best.matching, matching)
		}
	}
	return best
}

// bestSubtitleWindow scores quote against the line at si and keeps appending
// following lines while the score improves.
func (r *engineRun) bestSubtitleWindow(quote []string, si int) (float64, int, int) {
	score, matching := r.scorer.Score(quote, r.subWords[si])
	span := 1
	if matching <= 1 {
		return score, matching, span
	}
	r.buf = append(r.buf[:0], r.subWords[si]...)
	for size := 2; size <= 1+r.params.MaxSubtitleMerges && si+size-1 < len(r.subWords); size++ {
		r.buf = append(r.buf, r.subWords[si+size-1]...)
		nextScore, nextMatching := r.scorer.Score(quote, r.buf)
		if !improves(score, nextScore, matching, nextMatching) {
			break
		}
		score, matching, span = nextScore, nextMatching, size
	}
	return score, matching, span
}

// improves decides whether an extended window replaces the previous one. The
// score must rise, more than one word must match, and every extension must
// contribute more than one new matching word.
func improves(oldScore, newScore float64, oldMatching, newMatching int) bool {
	if newScore <= oldScore || newMatching <= 1 {
		return false
	}
	added := newMatching
	if newMatching >= oldMatching {
		added = newMatching - oldMatching
	}
	return added > 1
}
