package preprocess

import "regexp"

var punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\-' ]`)

// RemovePunctuation replaces everything except letters, digits, hyphens,
// apostrophes, and spaces with a space. It returns "" when no word remains.
func RemovePunctuation(text string) string {
	out := collapseSpace(punctuationPattern.ReplaceAllString(text, " "))
	if !alnumPattern.MatchString(out) {
		return ""
	}
	return out
}
