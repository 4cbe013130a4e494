package formatter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"booksync/internal/progress"
	"booksync/internal/services"
	"booksync/internal/textutil"
)

// Document is the JSON result file layout.
type Document struct {
	RunID     string       `json:"run_id"`
	Title     string       `json:"title,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Pipeline  PipelineInfo `json:"pipeline"`
	Matches   []Record     `json:"matches"`
}

// PipelineInfo records the processing sequence that produced a document.
type PipelineInfo struct {
	Preprocessors  []string  `json:"preprocessors"`
	Matcher        string    `json:"matcher"`
	Params         []float64 `json:"params"`
	Postprocessors []string  `json:"postprocessors"`
}

// NewDocument builds the document for res.
func NewDocument(res Result) Document {
	return Document{
		RunID:     res.RunID,
		Title:     res.Title,
		CreatedAt: res.CreatedAt.UTC(),
		Pipeline: PipelineInfo{
			Preprocessors:  res.Pipeline.Preprocessors,
			Matcher:        res.Pipeline.Matcher,
			Params:         res.Pipeline.Params,
			Postprocessors: res.Pipeline.Postprocessors,
		},
		Matches: Records(res),
	}
}

// ReadDocument decodes a result document. Ground-truth files use the same
// layout; only the match indices are required.
func ReadDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, services.Wrap(services.ErrParse, "formatter", "read document", "", err)
	}
	if doc.Matches == nil {
		return Document{}, services.Wrap(services.ErrParse, "formatter", "read document", "missing matches array", nil)
	}
	return doc, nil
}

// JSONFile writes the result document into Dir.
type JSONFile struct {
	Dir string
}

// Name implements Formatter.
func (f *JSONFile) Name() string { return NameJSON }

// Format implements Formatter. The file is written atomically; the reference
// is its path.
func (f *JSONFile) Format(ctx context.Context, res Result, sink progress.Sink) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "json", "create output directory", err)
	}
	data, err := json.MarshalIndent(NewDocument(res), "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "json", "encode document", err)
	}
	target := filepath.Join(f.Dir, FileName(res.Title, res.RunID))

	tmp, err := os.CreateTemp(f.Dir, ".booksync-*.json")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "json", "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return "", services.Wrap(services.ErrTransient, "formatter", "json", "write document", err)
	}
	if err := tmp.Close(); err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "json", "close document", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "formatter", "json", "move document into place", err)
	}
	progress.Message(sink, "formatting", fmt.Sprintf("Wrote %d matches to %s", len(res.Matches), target))
	return target, nil
}

// FileName derives the result file name from a title and run id.
func FileName(title, runID string) string {
	base := "run"
	if strings.TrimSpace(title) != "" {
		base = textutil.SanitizeToken(title)
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		return base + ".json"
	}
	return base + "-" + short + ".json"
}
