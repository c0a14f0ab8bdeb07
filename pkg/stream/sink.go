package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Sink receives events in order.
type Sink interface {
	Send(Event) error
}

// Emitter guards a Sink so that exactly one terminal event is delivered and
// nothing follows it. It is safe for concurrent use, which lets fan-out
// branches report status directly.
type Emitter struct {
	mu     sync.Mutex
	sink   Sink
	closed bool
}

// NewEmitter wraps sink. An existing *Emitter is returned unchanged.
func NewEmitter(sink Sink) *Emitter {
	if e, ok := sink.(*Emitter); ok {
		return e
	}
	return &Emitter{sink: sink}
}

// Send forwards ev, or returns ErrStreamClosed after a terminal event.
func (e *Emitter) Send(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	return e.sendLocked(ev)
}

// sendLocked forwards ev. e.mu must be held and the stream open.
func (e *Emitter) sendLocked(ev Event) error {
	if ev.Terminal() {
		e.closed = true
	}
	return e.sink.Send(ev)
}

// Fail sends a terminal error event.
func (e *Emitter) Fail(err error) error {
	return e.Send(Error(err.Error()))
}

// Close sends done unless a terminal event was already sent. A Close racing
// a terminal Send or another Close returns nil.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	return e.sendLocked(Done())
}

// Terminated reports whether a terminal event has been sent.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// NDJSONWriter writes one JSON object per line, flushing after each event
// when the underlying writer supports it.
type NDJSONWriter struct {
	w   io.Writer
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer over w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{w: w, enc: enc}
}

// Send encodes ev followed by a newline.
func (n *NDJSONWriter) Send(ev Event) error {
	if err := n.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if f, ok := n.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Recorder collects events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

// Send appends ev.
func (r *Recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	return nil
}

// Snapshot returns a copy of the recorded events.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.Events))
	copy(out, r.Events)
	return out
}

// Text concatenates the content of all token events.
func (r *Recorder) Text() string {
	var b strings.Builder
	for _, ev := range r.Snapshot() {
		if ev.Type == TypeToken {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Snapshot() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

// Send calls f(ev).
func (f SinkFunc) Send(ev Event) error { return f(ev) }
