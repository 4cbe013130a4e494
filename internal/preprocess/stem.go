package preprocess

import (
	"strings"

	"github.com/blevesearch/go-porterstemmer"
)

// Stem lowercases text and reduces every word to its Porter stem.
func Stem(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		words[i] = porterstemmer.StemString(word)
	}
	return strings.Join(words, " ")
}
