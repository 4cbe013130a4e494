// Package parser reads already-extracted quotes and subtitle lines from JSON
// documents and assigns their stable zero-based indices.
//
// Book document:
//
//	{"title": "...", "quotes": [{"text": "...", "paragraph": 3}]}
//
// Subtitle document:
//
//	{"subtitles": [{"from": "00:01:02,500", "to": "00:01:04,000", "text": "..."}]}
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"booksync/internal/model"
	"booksync/internal/services"
)

// Book is a parsed book document.
type Book struct {
	Title  string
	Quotes []model.Quote
}

type bookDocument struct {
	Title  string `json:"title"`
	Quotes []struct {
		Text      *string `json:"text"`
		Paragraph *int    `json:"paragraph"`
	} `json:"quotes"`
}

type subtitleDocument struct {
	Subtitles []struct {
		From *Timecode `json:"from"`
		To   *Timecode `json:"to"`
		Text *string   `json:"text"`
	} `json:"subtitles"`
}

// LoadBook decodes a book document.
func LoadBook(r io.Reader) (Book, error) {
	var doc bookDocument
	if err := decodeStrict(r, &doc); err != nil {
		return Book{}, services.Wrap(services.ErrParse, "parse", "book", "decode document", err)
	}
	if doc.Quotes == nil {
		return Book{}, services.Wrap(services.ErrParse, "parse", "book", "missing quotes array", nil)
	}
	quotes := make([]model.Quote, len(doc.Quotes))
	for i, q := range doc.Quotes {
		if q.Text == nil {
			return Book{}, services.Wrap(services.ErrParse, "parse", "book", fmt.Sprintf("quote %d has no text", i), nil)
		}
		paragraph := model.NoParagraph
		if q.Paragraph != nil {
			if *q.Paragraph < 0 {
				return Book{}, services.Wrap(services.ErrParse, "parse", "book", fmt.Sprintf("quote %d has negative paragraph", i), nil)
			}
			paragraph = *q.Paragraph
		}
		quotes[i] = model.Quote{Index: i, Text: *q.Text, Paragraph: paragraph}
	}
	return Book{Title: strings.TrimSpace(doc.Title), Quotes: quotes}, nil
}

// LoadQuotes decodes a book document and returns only its quotes.
func LoadQuotes(r io.Reader) ([]model.Quote, error) {
	book, err := LoadBook(r)
	if err != nil {
		return nil, err
	}
	return book.Quotes, nil
}

// LoadSubtitles decodes a subtitle document. Lines keep document order and
// carry no scene until one is derived.
func LoadSubtitles(r io.Reader) ([]model.SubtitleLine, error) {
	var doc subtitleDocument
	if err := decodeStrict(r, &doc); err != nil {
		return nil, services.Wrap(services.ErrParse, "parse", "subtitles", "decode document", err)
	}
	if doc.Subtitles == nil {
		return nil, services.Wrap(services.ErrParse, "parse", "subtitles", "missing subtitles array", nil)
	}
	lines := make([]model.SubtitleLine, len(doc.Subtitles))
	for i, s := range doc.Subtitles {
		if s.Text == nil || s.From == nil || s.To == nil {
			return nil, services.Wrap(services.ErrParse, "parse", "subtitles", fmt.Sprintf("line %d requires from, to and text", i), nil)
		}
		if s.To.Duration() < s.From.Duration() {
			return nil, services.Wrap(services.ErrParse, "parse", "subtitles", fmt.Sprintf("line %d ends before it starts", i), nil)
		}
		lines[i] = model.SubtitleLine{
			Index: i,
			From:  s.From.Duration(),
			To:    s.To.Duration(),
			Text:  *s.Text,
			Scene: model.NoScene,
		}
	}
	return lines, nil
}

func decodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after document")
	}
	return nil
}

// Source supplies one input document.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a document from disk.
type FileSource string

// Name implements Source.
func (f FileSource) Name() string { return filepath.Base(string(f)) }

// Open implements Source.
func (f FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "parse", "open", string(f), err)
	}
	return file, nil
}

// BytesSource serves an in-memory document.
type BytesSource struct {
	Label string
	Data  []byte
}

// Name implements Source.
func (b BytesSource) Name() string { return b.Label }

// Open implements Source.
func (b BytesSource) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(b.Data))), nil
}

// ReadBook opens src and decodes a book document.
func ReadBook(ctx context.Context, src Source) (Book, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return Book{}, err
	}
	defer rc.Close()
	return LoadBook(rc)
}

// ReadSubtitles opens src and decodes a subtitle document.
func ReadSubtitles(ctx context.Context, src Source) ([]model.SubtitleLine, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadSubtitles(rc)
}
