package progress

import (
	"encoding/json"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindPercent Kind = "percent"
	KindMessage Kind = "message"
	KindResult  Kind = "result"
	KindContent Kind = "content"
	KindEnd     Kind = "end"
)

// Event is one unit of run telemetry.
type Event struct {
	Seq     uint64          `json:"seq,omitempty"`
	Time    time.Time       `json:"ts"`
	RunID   string          `json:"run_id,omitempty"`
	Kind    Kind            `json:"kind"`
	Phase   string          `json:"phase,omitempty"`
	Percent int             `json:"percent,omitempty"`
	Message string          `json:"message,omitempty"`
	Chunk   json.RawMessage `json:"chunk,omitempty"`
	Result  *Result         `json:"result,omitempty"`
}

// Result is the terminal outcome of a run.
type Result struct {
	RunID     string `json:"run_id"`
	Ref       string `json:"ref,omitempty"`
	Matches   int    `json:"matches"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Terminal reports whether no further events follow e for its run.
func (e Event) Terminal() bool {
	return e.Kind == KindResult
}

// Sink receives events. Implementations must not block the caller for long.
type Sink interface {
	Emit(Event)
}

// Func adapts a function into a Sink.
type Func func(Event)

// Emit implements Sink.
func (f Func) Emit(e Event) {
	if f != nil {
		f(e)
	}
}

// Discard drops every event.
var Discard Sink = Func(nil)

// Tee forwards every event to each non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return Func(func(e Event) {
		for _, s := range out {
			s.Emit(e)
		}
	})
}

func stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return e
}

// Percent emits a percentage for phase.
func Percent(s Sink, phase string, percent int) {
	s.Emit(stamp(Event{Kind: KindPercent, Phase: phase, Percent: percent}))
}

// Message emits a human-readable phase message.
func Message(s Sink, phase, msg string) {
	s.Emit(stamp(Event{Kind: KindMessage, Phase: phase, Message: msg}))
}

// Content emits one chunk of streamed result content.
func Content(s Sink, chunk json.RawMessage) {
	s.Emit(stamp(Event{Kind: KindContent, Chunk: chunk}))
}

// End marks the end of streamed content.
func End(s Sink) {
	s.Emit(stamp(Event{Kind: KindEnd}))
}

// Finish emits the terminal result.
func Finish(s Sink, r Result) {
	s.Emit(stamp(Event{Kind: KindResult, RunID: r.RunID, Result: &r}))
}
