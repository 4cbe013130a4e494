package textutil

import "strings"

// Words lowercases text and splits it on whitespace. Preprocessed units are
// already collapsed to single spaces, so this matches a plain split on " "
// without producing empty words.
func Words(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// OverlapCount counts the words of a that pair with a distinct, equal word of
// b. Each word of b is used at most once, so repeated words only match as
// often as they occur on both sides.
func OverlapCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	used := make([]bool, len(b))
	matching := 0
	for _, word := range a {
		for j, candidate := range b {
			if used[j] || candidate != word {
				continue
			}
			used[j] = true
			matching++
			break
		}
	}
	return matching
}

// OverlapScore averages the share of matching words on both sides. It returns
// 0 when either side is empty.
func OverlapScore(matching, aLen, bLen int) float64 {
	if aLen == 0 || bLen == 0 {
		return 0
	}
	return (float64(matching)/float64(aLen) + float64(matching)/float64(bLen)) / 2
}
