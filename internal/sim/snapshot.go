package sim

import "time"

// MotorReading is the read-only per-motor view inside a snapshot.
type MotorReading struct {
	ID           MotorID
	EncoderCount int64
	CurrentMA    float64
	TempC        float64
	Fault        FaultKind
	LastDelta    int64
}

// Snapshot is the immutable view of simulation state handed from the
// control task to the telemetry publisher at each tick boundary. Publishers
// only ever read snapshots, never live components, so there are no torn
// reads across the two cadences.
type Snapshot struct {
	// SimTime is the simulation time at the end of the tick that produced
	// this snapshot.
	SimTime time.Duration
	// Tick is the number of completed control ticks.
	Tick uint64

	State      VehicleState
	Motors     []MotorReading
	VelocityMS float64
	Voltage    int32
	GPIO       byte

	// Transitions accepted during this tick, in order.
	Transitions []Transition
}
