// Package evaluation scores a run result against a ground-truth match set.
//
// A match counts as a true positive when the ground truth contains the same
// (quote, subtitle) pair. Both sides are compared as sets, so duplicate pairs
// are counted once.
package evaluation

import (
	"fmt"
	"os"
	"sort"

	"booksync/internal/formatter"
	"booksync/internal/model"
	"booksync/internal/services"
)

// Pair identifies a match by the indices it joins.
type Pair struct {
	Quote    int `json:"quote_index"`
	Subtitle int `json:"subtitle_index"`
}

func (p Pair) String() string {
	return fmt.Sprintf("q%d/s%d", p.Quote, p.Subtitle)
}

// Report summarizes a comparison.
type Report struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
	// Spurious lists result pairs missing from the ground truth; Missed lists
	// ground-truth pairs the result did not find. Both are sorted.
	Spurious []Pair
	Missed   []Pair
}

// PairsFromMatches extracts the pairs of a match set.
func PairsFromMatches(set model.MatchSet) []Pair {
	out := make([]Pair, len(set))
	for i, m := range set {
		out[i] = Pair{Quote: m.QuoteIndex, Subtitle: m.SubtitleIndex}
	}
	return out
}

// PairsFromDocument extracts the pairs of a result document.
func PairsFromDocument(doc formatter.Document) []Pair {
	out := make([]Pair, len(doc.Matches))
	for i, rec := range doc.Matches {
		out[i] = Pair{Quote: rec.QuoteIndex, Subtitle: rec.SubtitleIndex}
	}
	return out
}

// Compare scores result against truth. Ratios with a zero denominator are 0.
func Compare(result, truth []Pair) Report {
	resultSet := toSet(result)
	truthSet := toSet(truth)

	var rep Report
	for p := range resultSet {
		if _, ok := truthSet[p]; ok {
			rep.TruePositives++
		} else {
			rep.Spurious = append(rep.Spurious, p)
		}
	}
	for p := range truthSet {
		if _, ok := resultSet[p]; !ok {
			rep.Missed = append(rep.Missed, p)
		}
	}
	rep.FalsePositives = len(rep.Spurious)
	rep.FalseNegatives = len(rep.Missed)
	sortPairs(rep.Spurious)
	sortPairs(rep.Missed)

	rep.Precision = ratio(rep.TruePositives, rep.TruePositives+rep.FalsePositives)
	rep.Recall = ratio(rep.TruePositives, rep.TruePositives+rep.FalseNegatives)
	if rep.Precision+rep.Recall > 0 {
		rep.F1 = 2 * rep.Precision * rep.Recall / (rep.Precision + rep.Recall)
	}
	return rep
}

// CompareFiles reads two result documents and scores the first against the
// second.
func CompareFiles(resultPath, truthPath string) (Report, error) {
	result, err := readDocument(resultPath)
	if err != nil {
		return Report{}, err
	}
	truth, err := readDocument(truthPath)
	if err != nil {
		return Report{}, err
	}
	return Compare(PairsFromDocument(result), PairsFromDocument(truth)), nil
}

func readDocument(path string) (formatter.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return formatter.Document{}, services.Wrap(services.ErrParse, "evaluation", "open", path, err)
	}
	defer file.Close()
	doc, err := formatter.ReadDocument(file)
	if err != nil {
		return formatter.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func toSet(pairs []Pair) map[Pair]struct{} {
	set := make(map[Pair]struct{}, len(pairs))
	for _, p := range pairs {
		set[p] = struct{}{}
	}
	return set
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Quote != pairs[j].Quote {
			return pairs[i].Quote < pairs[j].Quote
		}
		return pairs[i].Subtitle < pairs[j].Subtitle
	})
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
