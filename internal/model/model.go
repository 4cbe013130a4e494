package model

import (
	"fmt"
	"time"
)

const (
	// NoParagraph marks a quote without a paragraph group.
	NoParagraph = -1
	// NoScene marks a subtitle line (or match) without a derived scene.
	NoScene = -1
)

// Quote is a book excerpt with a stable zero-based ordinal.
type Quote struct {
	Index     int
	Text      string
	Paragraph int
}

// SubtitleLine is a time-coded transcript line with a stable zero-based ordinal.
type SubtitleLine struct {
	Index int
	From  time.Duration
	To    time.Duration
	Text  string
	Scene int
}

// Match is a hypothesized correspondence between one quote and one subtitle
// line. Merged counts the extra quotes and subtitle lines that were joined to
// reach the score; zero means a plain one-to-one comparison.
type Match struct {
	QuoteIndex    int
	SubtitleIndex int
	From          time.Duration
	Score         float64
	Scene         int
	Merged        int
}

// HasScene reports whether the match carries a derived scene.
func (m Match) HasScene() bool {
	return m.Scene != NoScene
}

// MatchSet is an ordered collection of matches.
type MatchSet []Match

// Len returns the number of matches.
func (s MatchSet) Len() int {
	return len(s)
}

// Subset returns the matches for which keep reports true, preserving order.
// The receiver is never modified.
func (s MatchSet) Subset(keep func(i int, m Match) bool) MatchSet {
	out := make(MatchSet, 0, len(s))
	for i, m := range s {
		if keep(i, m) {
			out = append(out, m)
		}
	}
	return out
}

// Without returns the matches whose positions are not listed in remove.
func (s MatchSet) Without(remove map[int]struct{}) MatchSet {
	if len(remove) == 0 {
		return s.Clone()
	}
	return s.Subset(func(i int, _ Match) bool {
		_, drop := remove[i]
		return !drop
	})
}

// Clone returns a copy that shares no backing array with s.
func (s MatchSet) Clone() MatchSet {
	if s == nil {
		return nil
	}
	return append(MatchSet(make([]Match, 0, len(s))), s...)
}

// IsSubsequenceOf reports whether s can be obtained from original by removing
// entries only: no entry added, duplicated, or moved.
func (s MatchSet) IsSubsequenceOf(original MatchSet) bool {
	j := 0
	for _, m := range s {
		for j < len(original) && original[j] != m {
			j++
		}
		if j == len(original) {
			return false
		}
		j++
	}
	return true
}

// Validate checks that every match points into sequences of the given sizes
// and carries a score in [0,1].
func (s MatchSet) Validate(quotes, subtitles int) error {
	for i, m := range s {
		if m.QuoteIndex < 0 || m.QuoteIndex >= quotes {
			return fmt.Errorf("match %d: quote index %d out of range [0,%d)", i, m.QuoteIndex, quotes)
		}
		if m.SubtitleIndex < 0 || m.SubtitleIndex >= subtitles {
			return fmt.Errorf("match %d: subtitle index %d out of range [0,%d)", i, m.SubtitleIndex, subtitles)
		}
		if m.Score < 0 || m.Score > 1 {
			return fmt.Errorf("match %d: score %v outside [0,1]", i, m.Score)
		}
	}
	return nil
}
