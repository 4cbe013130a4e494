package preprocess

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
	"sync"
)

//go:embed stopwords.txt
var stopwordsData string

//go:embed contractions.txt
var contractionsData string

var (
	stopwordsOnce sync.Once
	stopwords     map[string]struct{}
	stopwordsErr  error

	contractionsOnce sync.Once
	contractions     map[string]string
	contractionsErr  error
)

func loadStopwords() (map[string]struct{}, error) {
	stopwordsOnce.Do(func() {
		set := make(map[string]struct{}, 256)
		err := scanList(stopwordsData, func(lineNo int, line string) error {
			if strings.ContainsAny(line, " \t") {
				return fmt.Errorf("stopwords line %d: expected a single word", lineNo)
			}
			set[strings.ToLower(line)] = struct{}{}
			return nil
		})
		stopwords, stopwordsErr = set, err
	})
	return stopwords, stopwordsErr
}

func loadContractions() (map[string]string, error) {
	contractionsOnce.Do(func() {
		table := make(map[string]string, 128)
		err := scanList(contractionsData, func(lineNo int, line string) error {
			key, value, ok := strings.Cut(line, "=")
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			if !ok || key == "" || value == "" {
				return fmt.Errorf("contractions line %d: expected word = expansion", lineNo)
			}
			table[strings.ToLower(key)] = value
			return nil
		})
		contractions, contractionsErr = table, err
	})
	return contractions, contractionsErr
}

// scanList calls fn for every non-blank, non-comment line.
func scanList(data string, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// RemoveStopwords lowercases text and drops common English function words.
func RemoveStopwords(text string) (string, error) {
	set, err := loadStopwords()
	if err != nil {
		return "", err
	}
	words := strings.Fields(strings.ToLower(text))
	kept := words[:0]
	for _, word := range words {
		if _, stop := set[word]; !stop {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " "), nil
}

// ExpandContractions replaces English contractions with their long form,
// word by word and case-insensitively.
func ExpandContractions(text string) (string, error) {
	table, err := loadContractions()
	if err != nil {
		return "", err
	}
	words := strings.Fields(text)
	for i, word := range words {
		if expansion, ok := table[strings.ToLower(word)]; ok {
			words[i] = expansion
		}
	}
	return strings.Join(words, " "), nil
}
