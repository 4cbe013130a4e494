package formatter

import (
	"context"
	"encoding/json"

	"booksync/internal/progress"
	"booksync/internal/services"
)

// Stream emits one content event per match followed by an end marker.
type Stream struct{}

// Name implements Formatter.
func (Stream) Name() string { return NameStream }

// Format implements Formatter. The reference is "stream".
func (Stream) Format(ctx context.Context, res Result, sink progress.Sink) (string, error) {
	for _, rec := range Records(res) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := json.Marshal(rec)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "formatter", "stream", "encode match", err)
		}
		progress.Content(sink, chunk)
	}
	progress.End(sink)
	return NameStream, nil
}
