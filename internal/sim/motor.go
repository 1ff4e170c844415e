package sim

import (
	"math"
	"math/rand"
)

// MotorParams holds the electromechanical constants for one motor. A fleet
// of real motors never reads identically, so constructors can perturb the
// electrical constants by a deterministic seeded variation.
type MotorParams struct {
	// BaseCurrentMA is the quiescent draw with zero duty.
	BaseCurrentMA float64
	// LoadGainMA scales current with load factor and duty magnitude.
	LoadGainMA float64
	// AccelGainMA adds a transient on duty changes.
	AccelGainMA float64
	// MaxCurrentMA clamps the nominal current model.
	MaxCurrentMA float64
	// StallCurrentMA is the pinned current under a stuck wheel; sits above
	// MaxCurrentMA.
	StallCurrentMA float64
	// TicksPerStep is the encoder increment at full duty for one step.
	TicksPerStep float64
	// WindingOhms converts current to dissipated power.
	WindingOhms float64
	// HeatRateCPerJoule converts dissipated power to temperature rise.
	HeatRateCPerJoule float64
	// CoolingPerSecond is the first-order cooling coefficient towards
	// ambient.
	CoolingPerSecond float64
	// VariationPct perturbs per-motor constants at construction and adds
	// per-step current jitter. Zero disables all randomness.
	VariationPct float64
}

// StepResult is the outcome of one 50 Hz motor step.
type StepResult struct {
	CurrentMA    float64
	EncoderDelta int64
	TempC        float64
}

// Motor models one wheel's electromechanical behavior. All mutation happens
// through Step, called exactly once per control tick by the control loop.
type Motor struct {
	id       MotorID
	params   MotorParams
	rng      *rand.Rand
	prevDuty float64

	currentMA float64
	encoder   int64
	tempC     float64
	lastDelta int64
}

// NewMotor creates a motor at ambient temperature. When params.VariationPct
// is nonzero the electrical constants are perturbed deterministically from
// the seed, so distinct seeds yield distinct but reproducible motors.
func NewMotor(id MotorID, params MotorParams, ambientC float64, seed int64) *Motor {
	m := &Motor{
		id:     id,
		params: params,
		tempC:  ambientC,
	}
	if params.VariationPct > 0 {
		m.rng = rand.New(rand.NewSource(seed))
		m.params.BaseCurrentMA = m.vary(params.BaseCurrentMA)
		m.params.LoadGainMA = m.vary(params.LoadGainMA)
		m.params.AccelGainMA = m.vary(params.AccelGainMA)
		m.params.TicksPerStep = m.vary(params.TicksPerStep)
	}
	m.currentMA = m.params.BaseCurrentMA
	return m
}

// ID returns the motor id.
func (m *Motor) ID() MotorID {
	return m.id
}

// EncoderCount returns the accumulated encoder count.
func (m *Motor) EncoderCount() int64 {
	return m.encoder
}

// CurrentMA returns the current draw after the last step.
func (m *Motor) CurrentMA() float64 {
	return m.currentMA
}

// TempC returns the winding temperature after the last step.
func (m *Motor) TempC() float64 {
	return m.tempC
}

// LastDelta returns the encoder delta produced by the last step.
func (m *Motor) LastDelta() int64 {
	return m.lastDelta
}

// Step advances the motor by one control step of dt seconds under the given
// commanded duty, ambient conditions and fault state.
//
// The nominal current model is base + loadGain*load*|duty| + accelGain*|duty
// change|, clamped to the maximum. A stuck wheel under nonzero duty
// overrides it: current pins at the stall value and the encoder freezes.
// Thermal integration runs every step regardless of fault state, so a
// stalled high-current motor heats faster than a healthy one.
func (m *Motor) Step(duty float64, env EnvironmentState, fault FaultKind, dt float64) StepResult {
	load := env.LoadFactor * env.SurfaceResistance

	current := m.params.BaseCurrentMA +
		m.params.LoadGainMA*load*math.Abs(duty) +
		m.params.AccelGainMA*math.Abs(duty-m.prevDuty)
	if m.rng != nil {
		current = m.vary(current)
	}
	if current > m.params.MaxCurrentMA {
		current = m.params.MaxCurrentMA
	}

	var delta int64
	if duty != 0 {
		delta = int64(math.Round(duty * m.params.TicksPerStep))
	}

	switch {
	case fault == FaultStuckWheel && duty != 0:
		current = m.params.StallCurrentMA
		delta = 0
	case fault == FaultOpenCircuit:
		// Broken winding: no current path, no torque.
		current = 0
		delta = 0
	case fault == FaultSensorDropout:
		// The wheel still turns; the encoder just stops reporting.
		delta = 0
	}

	amps := current / 1000
	powerW := amps * amps * m.params.WindingOhms
	m.tempC += (powerW*m.params.HeatRateCPerJoule -
		m.params.CoolingPerSecond*(m.tempC-env.AmbientTempC)) * dt

	m.currentMA = current
	m.encoder += delta
	m.lastDelta = delta
	m.prevDuty = duty

	return StepResult{CurrentMA: current, EncoderDelta: delta, TempC: m.tempC}
}

// vary perturbs a value within ±VariationPct percent.
func (m *Motor) vary(v float64) float64 {
	spread := v * m.params.VariationPct / 100
	return v + m.rng.Float64()*2*spread - spread
}

// stallDetector debounces the stall condition for one motor: nonzero duty,
// current at or above the threshold, and no encoder progress, held for a
// configured number of consecutive steps.
type stallDetector struct {
	thresholdMA float64
	needed      int
	count       int
	latched     bool
}

func newStallDetector(thresholdMA float64, debounceTicks int) *stallDetector {
	if debounceTicks <= 0 {
		debounceTicks = 2
	}
	return &stallDetector{thresholdMA: thresholdMA, needed: debounceTicks}
}

// observe feeds one step's outcome. It returns true exactly once per
// continuous stall episode, on the step the debounce window fills.
func (d *stallDetector) observe(duty float64, currentMA float64, delta int64) bool {
	if duty != 0 && currentMA >= d.thresholdMA && delta == 0 {
		d.count++
	} else {
		d.count = 0
		d.latched = false
		return false
	}
	if d.count >= d.needed && !d.latched {
		d.latched = true
		return true
	}
	return false
}
