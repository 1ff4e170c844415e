package sim

import (
	"fmt"
	"time"
)

// MotorID identifies one of the four wheel motors.
type MotorID string

// The rover has four wheel motors, lettered a through d.
const (
	MotorA MotorID = "a"
	MotorB MotorID = "b"
	MotorC MotorID = "c"
	MotorD MotorID = "d"
)

// MotorIDs returns all motor ids in publish order.
func MotorIDs() []MotorID {
	return []MotorID{MotorA, MotorB, MotorC, MotorD}
}

// ParseMotorID validates a motor id string.
func ParseMotorID(s string) (MotorID, error) {
	switch MotorID(s) {
	case MotorA, MotorB, MotorC, MotorD:
		return MotorID(s), nil
	}
	return "", fmt.Errorf("unknown motor id %q", s)
}

// FaultKind is the closed set of injectable hardware faults.
type FaultKind int

const (
	// FaultNone means the motor is healthy.
	FaultNone FaultKind = iota
	// FaultStuckWheel mechanically blocks the wheel: current pins at the
	// stall value and the encoder stops advancing while duty is applied.
	FaultStuckWheel
	// FaultOpenCircuit is a declared variant for a broken winding.
	FaultOpenCircuit
	// FaultSensorDropout is a declared variant for a dead encoder.
	FaultSensorDropout
)

// String returns the wire name of the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultStuckWheel:
		return "stuck_wheel"
	case FaultOpenCircuit:
		return "open_circuit"
	case FaultSensorDropout:
		return "sensor_dropout"
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// ParseFaultKind parses a fault kind wire name.
func ParseFaultKind(s string) (FaultKind, error) {
	switch s {
	case "stuck_wheel":
		return FaultStuckWheel, nil
	case "open_circuit":
		return FaultOpenCircuit, nil
	case "sensor_dropout":
		return FaultSensorDropout, nil
	}
	return FaultNone, fmt.Errorf("unknown fault kind %q", s)
}

// Fault is an active fault assignment held by the registry.
type Fault struct {
	Motor      MotorID
	Kind       FaultKind
	InjectedAt time.Duration
}

// FaultRegistry holds active fault assignments keyed by motor. Faults latch
// until explicitly cleared; there is no automatic expiry. The registry is
// owned by the control task and must only be touched from tick context.
type FaultRegistry struct {
	active map[MotorID]Fault
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{active: make(map[MotorID]Fault)}
}

// Inject records a fault on a motor. Injecting a fault that is already
// present is a no-op. Returns true if the registry changed.
func (r *FaultRegistry) Inject(motor MotorID, kind FaultKind, at time.Duration) bool {
	if existing, ok := r.active[motor]; ok && existing.Kind == kind {
		return false
	}
	r.active[motor] = Fault{Motor: motor, Kind: kind, InjectedAt: at}
	return true
}

// Clear removes any fault from a motor. Clearing an absent fault is a no-op.
// Returns true if the registry changed.
func (r *FaultRegistry) Clear(motor MotorID) bool {
	if _, ok := r.active[motor]; !ok {
		return false
	}
	delete(r.active, motor)
	return true
}

// Active returns the fault kind currently assigned to a motor, or FaultNone.
func (r *FaultRegistry) Active(motor MotorID) FaultKind {
	if f, ok := r.active[motor]; ok {
		return f.Kind
	}
	return FaultNone
}

// Empty reports whether no motor has an active fault.
func (r *FaultRegistry) Empty() bool {
	return len(r.active) == 0
}

// Len returns the number of active faults.
func (r *FaultRegistry) Len() int {
	return len(r.active)
}
