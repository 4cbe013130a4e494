package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+?>`)
	apostrophePattern = regexp.MustCompile(`(\p{L})[’‘](\p{L})`)
	alnumPattern      = regexp.MustCompile(`[\p{L}\p{N}]`)
)

// Clean normalizes raw text: NFC composition, escaped and literal line breaks
// to spaces, markup tags removed, dashes that do not join two word characters
// replaced by spaces, typographic apostrophes inside words unified to ', and
// whitespace collapsed. It returns "" when no letter or digit remains.
// Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	out := norm.NFC.String(text)
	// Stripping a tag can join a backslash and an n, and removing an escaped
	// break can close a tag, so repeat both until neither changes the text.
	for {
		next := tagPattern.ReplaceAllString(strings.ReplaceAll(out, `\n`, " "), "")
		if next == out {
			break
		}
		out = next
	}
	out = replaceLooseDashes(out)
	for apostrophePattern.MatchString(out) {
		out = apostrophePattern.ReplaceAllString(out, "${1}'${2}")
	}
	out = collapseSpace(norm.NFC.String(out))
	if !alnumPattern.MatchString(out) {
		return ""
	}
	return out
}

// replaceLooseDashes keeps a hyphen only when both neighbours are letters or
// digits; every other dash (including en and em dashes) becomes a space.
func replaceLooseDashes(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		if !unicode.Is(unicode.Pd, r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' && i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1]) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
