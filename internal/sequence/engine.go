package sequence

import (
	"time"

	"github.com/roversim/mobility/internal/dispatcher"
)

// Engine replays a validated sequence against the simulation clock. On each
// control tick it releases every event whose offset has elapsed, in
// document order; ties at the same offset keep document order. The engine
// never rewinds: once the last event is out, the simulation free-runs in
// its last commanded state.
type Engine struct {
	seq  *Sequence
	next int
}

// NewEngine creates a replay engine over a validated sequence.
func NewEngine(seq *Sequence) *Engine {
	return &Engine{seq: seq}
}

// Release returns all not-yet-released events with offset <= now, wrapped
// as dispatcher events. Called from control-tick context only.
func (e *Engine) Release(now time.Duration) []dispatcher.Event {
	var out []dispatcher.Event
	events := e.seq.Events()
	for e.next < len(events) && events[e.next].At <= now {
		ev := events[e.next]
		out = append(out, dispatcher.Event{
			Kind:    ev.Kind(),
			Payload: ev.Payload,
			At:      ev.At,
		})
		e.next++
	}
	return out
}

// Remaining returns the number of events not yet released.
func (e *Engine) Remaining() int {
	return e.seq.Len() - e.next
}

// Done reports whether every event has been released.
func (e *Engine) Done() bool {
	return e.Remaining() == 0
}
