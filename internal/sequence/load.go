package sequence

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roversim/mobility/internal/sim"
)

// File format:
//
//	events:
//	  - at: 0ms
//	    command: forward
//	  - at: 200ms
//	    inject_fault: {motor: b, kind: stuck_wheel}
//	  - at: 350ms
//	    set_environment: {field: load_factor, value: 1.5}
//	  - at: 500ms
//	    command: stop
type fileDoc struct {
	Events []rawEvent `yaml:"events"`
}

type rawEvent struct {
	At             string     `yaml:"at"`
	Command        string     `yaml:"command,omitempty"`
	SetEnvironment *rawSetEnv `yaml:"set_environment,omitempty"`
	InjectFault    *rawInject `yaml:"inject_fault,omitempty"`
	ClearFault     *rawClear  `yaml:"clear_fault,omitempty"`
}

type rawSetEnv struct {
	Field string  `yaml:"field"`
	Value float64 `yaml:"value"`
}

type rawInject struct {
	Motor string `yaml:"motor"`
	Kind  string `yaml:"kind"`
}

type rawClear struct {
	Motor string `yaml:"motor"`
}

// Load reads and validates a sequence file. Any malformed event is fatal
// before the simulation starts.
func Load(path string) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sequence file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a YAML sequence document.
func Parse(r io.Reader) (*Sequence, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding sequence: %w", err)
	}

	events := make([]Event, 0, len(doc.Events))
	for i, raw := range doc.Events {
		ev, err := convert(i, raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return New(events)
}

func convert(index int, raw rawEvent) (Event, error) {
	at, err := time.ParseDuration(raw.At)
	if err != nil {
		return Event{}, &ValidationError{
			Index:  index,
			Reason: fmt.Sprintf("bad offset %q: %v", raw.At, err),
		}
	}

	fail := func(reason string) (Event, error) {
		return Event{}, &ValidationError{Index: index, Offset: at, Reason: reason}
	}

	var payload any
	count := 0

	if raw.Command != "" {
		cmd, err := sim.ParseCommand(raw.Command)
		if err != nil {
			return fail(err.Error())
		}
		payload = sim.CommandPayload{Command: cmd}
		count++
	}
	if raw.SetEnvironment != nil {
		field, err := sim.ParseEnvField(raw.SetEnvironment.Field)
		if err != nil {
			return fail(err.Error())
		}
		if field == sim.FieldLoadFactor && raw.SetEnvironment.Value < 0 {
			return fail(fmt.Sprintf("load_factor must be >= 0, got %v", raw.SetEnvironment.Value))
		}
		payload = sim.SetEnvironmentPayload{Field: field, Value: raw.SetEnvironment.Value}
		count++
	}
	if raw.InjectFault != nil {
		motor, err := sim.ParseMotorID(raw.InjectFault.Motor)
		if err != nil {
			return fail(err.Error())
		}
		kind, err := sim.ParseFaultKind(raw.InjectFault.Kind)
		if err != nil {
			return fail(err.Error())
		}
		payload = sim.InjectFaultPayload{Motor: motor, Kind: kind}
		count++
	}
	if raw.ClearFault != nil {
		motor, err := sim.ParseMotorID(raw.ClearFault.Motor)
		if err != nil {
			return fail(err.Error())
		}
		payload = sim.ClearFaultPayload{Motor: motor}
		count++
	}

	if count == 0 {
		return fail("event has no payload")
	}
	if count > 1 {
		return fail("event has more than one payload")
	}

	return Event{At: at, Payload: payload, Index: index}, nil
}
