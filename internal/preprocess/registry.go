package preprocess

import (
	"sort"
	"strings"

	"booksync/internal/services"
)

var builtin = map[string]func() Stage{
	"clean":        func() Stage { return Func("clean", wrapPure(Clean)) },
	"punctuation":  func() Stage { return Func("punctuation", wrapPure(RemovePunctuation)) },
	"stopwords":    func() Stage { return Func("stopwords", RemoveStopwords) },
	"contractions": func() Stage { return Func("contractions", ExpandContractions) },
	"stem":         func() Stage { return Func("stem", wrapPure(Stem)) },
}

func wrapPure(fn func(string) string) func(string) (string, error) {
	return func(text string) (string, error) { return fn(text), nil }
}

// Lookup builds a chain from stage names. An unknown name is a configuration
// error; an empty list yields an empty chain that returns its input.
func Lookup(names []string) (Chain, error) {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		factory, ok := builtin[name]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "preprocess", "lookup", "unknown preprocessor "+name+" (available: "+strings.Join(Available(), ", ")+")", nil)
		}
		chain = append(chain, factory())
	}
	return chain, nil
}

// Available returns the registered stage names, sorted.
func Available() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
