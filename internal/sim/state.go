package sim

import (
	"errors"
	"fmt"
	"time"
)

// VehicleState is the vehicle-level drive state. The integer values are the
// enum encoding published on the vehicle_state channel and must not change.
type VehicleState int32

const (
	StateIdle         VehicleState = 0
	StateForwardDrive VehicleState = 1
	StateReverseDrive VehicleState = 2
	StateFault        VehicleState = 3
)

// String returns the display name used in state log messages.
func (s VehicleState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateForwardDrive:
		return "Forward Drive"
	case StateReverseDrive:
		return "Reverse Drive"
	case StateFault:
		return "Fault"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// CommandKind is a vehicle-level drive command.
type CommandKind int

const (
	CommandForward CommandKind = iota
	CommandReverse
	CommandStop
	CommandReset
)

// String returns the wire name of the command.
func (c CommandKind) String() string {
	switch c {
	case CommandForward:
		return "forward"
	case CommandReverse:
		return "reverse"
	case CommandStop:
		return "stop"
	case CommandReset:
		return "reset"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// ParseCommand parses a command wire name.
func ParseCommand(s string) (CommandKind, error) {
	switch s {
	case "forward":
		return CommandForward, nil
	case "reverse":
		return CommandReverse, nil
	case "stop":
		return CommandStop, nil
	case "reset":
		return CommandReset, nil
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// Command rejection conditions. Both are non-fatal: the event is logged,
// ignored, and the simulation continues.
var (
	ErrInvalidCommand    = errors.New("invalid command for current state")
	ErrFaultStillPresent = errors.New("fault still present")
)

// Transition records one accepted state change for the state_logs flow.
type Transition struct {
	From  VehicleState
	To    VehicleState
	Cause string
	At    time.Duration
}

// Message renders the transition as a state log line.
func (t Transition) Message() string {
	return fmt.Sprintf("State transition from %s to %s (%s)", t.From, t.To, t.Cause)
}

// commandTransitions is the accepted-transition table. A missing entry means
// the command is rejected in that state; same-state entries are accepted
// no-ops and produce no transition record.
var commandTransitions = map[VehicleState]map[CommandKind]VehicleState{
	StateIdle: {
		CommandForward: StateForwardDrive,
		CommandReverse: StateReverseDrive,
		CommandStop:    StateIdle,
	},
	StateForwardDrive: {
		CommandForward: StateForwardDrive,
		CommandStop:    StateIdle,
	},
	StateReverseDrive: {
		CommandReverse: StateReverseDrive,
		CommandStop:    StateIdle,
	},
	StateFault: {
		CommandReset: StateIdle,
	},
}

// StateMachine owns the vehicle state and arbitrates commands against it.
// Entering Fault is only possible through stall detection; leaving it only
// through an explicit reset once the fault registry is empty.
type StateMachine struct {
	state       VehicleState
	faults      *FaultRegistry
	faultMotor  MotorID
	transitions []Transition
	maxDepth    int
}

// NewStateMachine creates a machine in Idle consulting the given registry
// for reset arbitration. maxDepth bounds the pending transition log.
func NewStateMachine(faults *FaultRegistry, maxDepth int) *StateMachine {
	if maxDepth <= 0 {
		maxDepth = 64
	}
	return &StateMachine{
		state:    StateIdle,
		faults:   faults,
		maxDepth: maxDepth,
	}
}

// State returns the current vehicle state.
func (m *StateMachine) State() VehicleState {
	return m.state
}

// FaultMotor returns the motor that triggered the Fault state, if any.
func (m *StateMachine) FaultMotor() MotorID {
	return m.faultMotor
}

// Command applies a drive command at the given simulation time. Rejected
// commands return ErrInvalidCommand or ErrFaultStillPresent and leave the
// state unchanged.
func (m *StateMachine) Command(cmd CommandKind, at time.Duration) error {
	next, ok := commandTransitions[m.state][cmd]
	if !ok {
		return fmt.Errorf("%w: %s while %s", ErrInvalidCommand, cmd, m.state)
	}

	if cmd == CommandReset {
		if !m.faults.Empty() {
			return fmt.Errorf("%w: %d active", ErrFaultStillPresent, m.faults.Len())
		}
		m.faultMotor = ""
	}

	if next == m.state {
		return nil
	}

	m.record(Transition{From: m.state, To: next, Cause: "command " + cmd.String(), At: at})
	m.state = next
	return nil
}

// OnStall moves the machine to Fault in response to a debounced stall on the
// given motor. A machine already in Fault ignores further stall signals.
// Returns true if the state changed.
func (m *StateMachine) OnStall(motor MotorID, at time.Duration) bool {
	if m.state == StateFault {
		return false
	}
	m.faultMotor = motor
	m.record(Transition{
		From:  m.state,
		To:    StateFault,
		Cause: fmt.Sprintf("stall detected on motor %s", motor),
		At:    at,
	})
	m.state = StateFault
	return true
}

// DrainTransitions returns and clears the accepted transitions since the
// last call. Consumed by the telemetry publisher each tick.
func (m *StateMachine) DrainTransitions() []Transition {
	out := m.transitions
	m.transitions = nil
	return out
}

func (m *StateMachine) record(t Transition) {
	if len(m.transitions) >= m.maxDepth {
		m.transitions = m.transitions[1:]
	}
	m.transitions = append(m.transitions, t)
}
