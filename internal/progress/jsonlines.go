package progress

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// JSONLines writes each event as one JSON document per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONLines wraps w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Emit implements Sink. The first write error is retained and later events
// are dropped.
func (j *JSONLines) Emit(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(stamp(e))
}

// Err returns the first write error.
func (j *JSONLines) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// DecodeLine parses one JSON-lines event.
func DecodeLine(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("decode progress event: %w", err)
	}
	if e.Kind == "" {
		return Event{}, fmt.Errorf("decode progress event: missing kind")
	}
	return e, nil
}

// ReadJSONLines decodes events from r and forwards them to sink until EOF.
// Lines that are not events are passed to onOther when set.
func ReadJSONLines(r io.Reader, sink Sink, onOther func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := DecodeLine(line)
		if err != nil {
			if onOther != nil {
				onOther(string(line))
			}
			continue
		}
		sink.Emit(e)
	}
	return scanner.Err()
}
