// Package sequence loads and replays scripted simulation runs: an ordered
// list of timed commands, environment changes and fault injections that
// drive one simulation from start to finish.
package sequence

import (
	"fmt"
	"time"

	"github.com/roversim/mobility/internal/sim"
)

// Event is one scripted event. Payload is exactly one of the sim event
// payload types.
type Event struct {
	// At is the offset from sequence start at which the event fires.
	At time.Duration
	// Payload is one of sim.CommandPayload, sim.SetEnvironmentPayload,
	// sim.InjectFaultPayload or sim.ClearFaultPayload.
	Payload any
	// Index is the document position, used for tie ordering and error
	// reporting.
	Index int
}

// Kind returns the dispatcher event kind for the payload.
func (e Event) Kind() string {
	switch e.Payload.(type) {
	case sim.CommandPayload:
		return sim.EventKindCommand
	case sim.SetEnvironmentPayload:
		return sim.EventKindSetEnvironment
	case sim.InjectFaultPayload:
		return sim.EventKindInjectFault
	case sim.ClearFaultPayload:
		return sim.EventKindClearFault
	}
	return ""
}

// Sequence is a validated, time-ordered event script. Sequences are loaded
// once per run and consumed monotonically; there is no rewind.
type Sequence struct {
	events []Event
}

// Events returns the validated events in document order.
func (s *Sequence) Events() []Event {
	return s.events
}

// Len returns the number of events.
func (s *Sequence) Len() int {
	return len(s.events)
}

// ValidationError is a load-time sequence error. It is fatal: the run does
// not start.
type ValidationError struct {
	Index  int
	Offset time.Duration
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sequence event %d (at %s): %s", e.Index, e.Offset, e.Reason)
}

// New validates events and returns a Sequence. Offsets must be
// non-decreasing, every target must exist, and events sharing an offset
// must not contradict each other.
func New(events []Event) (*Sequence, error) {
	var prev time.Duration
	for i, ev := range events {
		if ev.At < 0 {
			return nil, &ValidationError{Index: i, Offset: ev.At, Reason: "negative offset"}
		}
		if i > 0 && ev.At < prev {
			return nil, &ValidationError{
				Index:  i,
				Offset: ev.At,
				Reason: fmt.Sprintf("offset decreases from %s", prev),
			}
		}
		prev = ev.At

		switch ev.Payload.(type) {
		case sim.CommandPayload, sim.SetEnvironmentPayload,
			sim.InjectFaultPayload, sim.ClearFaultPayload:
		default:
			return nil, &ValidationError{
				Index:  i,
				Offset: ev.At,
				Reason: fmt.Sprintf("unknown payload type %T", ev.Payload),
			}
		}
	}

	if err := checkContradictions(events); err != nil {
		return nil, err
	}

	seq := &Sequence{events: make([]Event, len(events))}
	copy(seq.events, events)
	for i := range seq.events {
		seq.events[i].Index = i
	}
	return seq, nil
}

// checkContradictions rejects events that target contradictory state at the
// same offset: injecting and clearing the same motor's fault, or two
// different commands.
func checkContradictions(events []Event) error {
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events) && events[j].At == events[i].At; j++ {
			if reason := contradiction(events[i].Payload, events[j].Payload); reason != "" {
				return &ValidationError{Index: j, Offset: events[j].At, Reason: reason}
			}
		}
	}
	return nil
}

func contradiction(a, b any) string {
	if ca, ok := a.(sim.CommandPayload); ok {
		if cb, ok := b.(sim.CommandPayload); ok && ca.Command != cb.Command {
			return fmt.Sprintf("contradictory commands %s and %s at the same offset",
				ca.Command, cb.Command)
		}
	}

	motorOf := func(p any) (sim.MotorID, bool, bool) {
		switch v := p.(type) {
		case sim.InjectFaultPayload:
			return v.Motor, true, true
		case sim.ClearFaultPayload:
			return v.Motor, false, true
		}
		return "", false, false
	}

	ma, injA, okA := motorOf(a)
	mb, injB, okB := motorOf(b)
	if okA && okB && ma == mb && injA != injB {
		return fmt.Sprintf("fault on motor %s both injected and cleared at the same offset", ma)
	}
	return ""
}
