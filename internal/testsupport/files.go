package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Line describes one subtitle line for WriteSubtitles.
type Line struct {
	From time.Duration
	To   time.Duration
	Text string
}

// WriteBook writes a book document with the given quotes and returns its path.
func WriteBook(t testing.TB, dir, title string, quotes ...string) string {
	t.Helper()

	type quote struct {
		Text string `json:"text"`
	}
	doc := struct {
		Title  string  `json:"title"`
		Quotes []quote `json:"quotes"`
	}{Title: title, Quotes: make([]quote, len(quotes))}
	for i, q := range quotes {
		doc.Quotes[i] = quote{Text: q}
	}
	return writeJSON(t, filepath.Join(dir, "book.json"), doc)
}

// WriteSubtitles writes a subtitle document and returns its path. Timing is
// encoded in milliseconds.
func WriteSubtitles(t testing.TB, dir string, lines ...Line) string {
	t.Helper()

	type line struct {
		From int64  `json:"from"`
		To   int64  `json:"to"`
		Text string `json:"text"`
	}
	doc := struct {
		Subtitles []line `json:"subtitles"`
	}{Subtitles: make([]line, len(lines))}
	for i, l := range lines {
		doc.Subtitles[i] = line{From: l.From.Milliseconds(), To: l.To.Milliseconds(), Text: l.Text}
	}
	return writeJSON(t, filepath.Join(dir, "subtitles.json"), doc)
}

// EvenLines spaces texts one second apart, each lasting 800ms.
func EvenLines(texts ...string) []Line {
	out := make([]Line, len(texts))
	for i, text := range texts {
		from := time.Duration(i) * time.Second
		out[i] = Line{From: from, To: from + 800*time.Millisecond, Text: text}
	}
	return out
}

func writeJSON(t testing.TB, path string, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
