package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"booksync/internal/progress"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter renders run events for a human. On a terminal percentages
// redraw a single status line; elsewhere only phase messages are printed.
type progressPrinter struct {
	mu      sync.Mutex
	status  io.Writer
	content io.Writer
	prefix  string
	tty     bool
	pending bool
}

func newProgressPrinter(status, content io.Writer, prefix string) progress.Sink {
	p := &progressPrinter{
		status:  status,
		content: content,
		prefix:  prefix,
		tty:     isTerminal(status),
	}
	return progress.NewThrottled(p, 100*time.Millisecond, 1)
}

func (p *progressPrinter) Emit(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Kind {
	case progress.KindPercent:
		if p.tty {
			fmt.Fprintf(p.status, "\r%s%s %3d%%", p.prefix, e.Phase, e.Percent)
			p.pending = true
		}
	case progress.KindMessage:
		p.breakLine()
		fmt.Fprintf(p.status, "%s%s\n", p.prefix, strings.TrimSpace(e.Message))
	case progress.KindContent:
		if p.content != nil {
			p.breakLine()
			fmt.Fprintln(p.content, string(e.Chunk))
		}
	case progress.KindResult:
		p.breakLine()
	}
}

func (p *progressPrinter) breakLine() {
	if p.pending {
		fmt.Fprintln(p.status)
		p.pending = false
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
