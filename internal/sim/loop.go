package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/roversim/mobility/internal/dispatcher"
)

// EventSource hands the control loop every scripted event whose offset has
// elapsed. Implemented by the sequence engine.
type EventSource interface {
	Release(now time.Duration) []dispatcher.Event
}

// Observer receives the snapshot produced at each tick boundary.
// Implemented by the telemetry publisher.
type Observer interface {
	ObserveTick(s Snapshot)
}

// LoopConfig holds the vehicle-level constants the control loop needs.
type LoopConfig struct {
	DriveDuty          float64
	StallThresholdMA   float64
	StallDebounceTicks int
	NominalVoltage     float64
	SourceOhms         float64
	TicksPerRev        float64
	WheelCircumM       float64
	HeaterOnBelowC     float64
}

// Dependencies holds all collaborators of the control loop.
type Dependencies struct {
	Clock   *Clock
	Machine *StateMachine
	Faults  *FaultRegistry
	Env     *Environment
	Motors  []*Motor

	// Source may be nil for a free-running simulation with no script.
	Source EventSource
	Router *dispatcher.Dispatcher
	// Observer may be nil when nothing consumes telemetry.
	Observer Observer
	Logger   *slog.Logger
}

// Loop is the 50 Hz low-level control loop. It is the sole writer of all
// simulation state: each tick it drains due sequence events, derives motor
// duties from the vehicle state, steps every motor, debounces stall
// detection and feeds confirmed stalls back into the state machine.
type Loop struct {
	deps      Dependencies
	cfg       LoopConfig
	detectors map[MotorID]*stallDetector

	// ticksDone is readable from other goroutines (status monitor).
	ticksDone atomic.Uint64

	ticks    metric.Int64Counter
	overruns metric.Int64Counter
}

// TicksDone returns the number of completed control ticks. Safe to call
// from any goroutine.
func (l *Loop) TicksDone() uint64 {
	return l.ticksDone.Load()
}

// NewLoop creates the control loop and registers the event appliers on the
// dispatcher.
func NewLoop(deps Dependencies, cfg LoopConfig) (*Loop, error) {
	if deps.Clock == nil || deps.Machine == nil || deps.Faults == nil || deps.Env == nil {
		return nil, fmt.Errorf("control loop missing core dependencies")
	}
	if len(deps.Motors) == 0 {
		return nil, fmt.Errorf("control loop needs at least one motor")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	l := &Loop{
		deps:      deps,
		cfg:       cfg,
		detectors: make(map[MotorID]*stallDetector, len(deps.Motors)),
	}
	for _, m := range deps.Motors {
		l.detectors[m.ID()] = newStallDetector(cfg.StallThresholdMA, cfg.StallDebounceTicks)
	}

	m := meter()
	var err error
	l.ticks, err = m.Int64Counter(
		"sim.control.ticks",
		metric.WithDescription("Total control ticks completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	l.overruns, err = m.Int64Counter(
		"sim.control.overruns",
		metric.WithDescription("Control ticks that exceeded their period"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating overrun counter: %w", err)
	}

	if deps.Router != nil {
		l.registerAppliers()
	}

	return l, nil
}

// registerAppliers wires each event kind to its owning component. Handlers
// run synchronously in tick context; a rejection is logged by the caller
// and never interrupts the run.
func (l *Loop) registerAppliers() {
	r := l.deps.Router

	r.Register(EventKindCommand, func(e dispatcher.Event) error {
		p, ok := e.Payload.(CommandPayload)
		if !ok {
			return fmt.Errorf("command event carries %T", e.Payload)
		}
		return l.deps.Machine.Command(p.Command, l.deps.Clock.Now())
	})

	r.Register(EventKindSetEnvironment, func(e dispatcher.Event) error {
		p, ok := e.Payload.(SetEnvironmentPayload)
		if !ok {
			return fmt.Errorf("set_environment event carries %T", e.Payload)
		}
		return l.deps.Env.Set(p.Field, p.Value)
	})

	r.Register(EventKindInjectFault, func(e dispatcher.Event) error {
		p, ok := e.Payload.(InjectFaultPayload)
		if !ok {
			return fmt.Errorf("inject_fault event carries %T", e.Payload)
		}
		l.deps.Faults.Inject(p.Motor, p.Kind, l.deps.Clock.Now())
		return nil
	})

	r.Register(EventKindClearFault, func(e dispatcher.Event) error {
		p, ok := e.Payload.(ClearFaultPayload)
		if !ok {
			return fmt.Errorf("clear_fault event carries %T", e.Payload)
		}
		l.deps.Faults.Clear(p.Motor)
		return nil
	})
}

// RunTick executes exactly one control step. Exported so tests and
// cooperative schedulers can drive the loop without wall-clock pacing.
func (l *Loop) RunTick() {
	now := l.deps.Clock.Now()

	// 1. Drain every scripted event due at or before this tick.
	if l.deps.Source != nil && l.deps.Router != nil {
		for _, e := range l.deps.Source.Release(now) {
			if err := l.deps.Router.Dispatch(e); err != nil {
				l.deps.Logger.Warn("sequence event rejected",
					"kind", e.Kind, "at", e.At, "error", err)
			}
		}
	}

	// 2. Apply staged environment changes between steps, never mid-step.
	l.deps.Env.Commit()
	env := l.deps.Env.Current()

	duty := l.commandedDuty()
	dt := l.deps.Clock.Step().Seconds()

	// 3. Step all motors and 4. evaluate stall detection.
	var stalled []MotorID
	for _, m := range l.deps.Motors {
		fault := l.deps.Faults.Active(m.ID())
		res := m.Step(duty, env, fault, dt)
		if l.detectors[m.ID()].observe(duty, res.CurrentMA, res.EncoderDelta) {
			stalled = append(stalled, m.ID())
		}
	}

	// 5. Feed newly confirmed stalls into the state machine.
	for _, id := range stalled {
		if l.deps.Machine.OnStall(id, now) {
			l.deps.Logger.Warn("stall confirmed, vehicle entering fault state",
				"motor", string(id), "at", now)
		}
	}

	l.deps.Clock.Advance()
	l.ticksDone.Add(1)
	l.ticks.Add(context.Background(), 1)

	if l.deps.Observer != nil {
		l.deps.Observer.ObserveTick(l.Snapshot())
	}
}

// commandedDuty derives the per-wheel duty from the vehicle state. All four
// wheels share one duty; Idle and Fault de-energize the motors.
func (l *Loop) commandedDuty() float64 {
	switch l.deps.Machine.State() {
	case StateForwardDrive:
		return l.cfg.DriveDuty
	case StateReverseDrive:
		return -l.cfg.DriveDuty
	}
	return 0
}

// Snapshot builds the immutable tick-boundary view handed to the telemetry
// publisher.
func (l *Loop) Snapshot() Snapshot {
	env := l.deps.Env.Current()

	motors := make([]MotorReading, 0, len(l.deps.Motors))
	var totalMA float64
	var meanDelta float64
	for _, m := range l.deps.Motors {
		motors = append(motors, MotorReading{
			ID:           m.ID(),
			EncoderCount: m.EncoderCount(),
			CurrentMA:    m.CurrentMA(),
			TempC:        m.TempC(),
			Fault:        l.deps.Faults.Active(m.ID()),
			LastDelta:    m.LastDelta(),
		})
		totalMA += m.CurrentMA()
		meanDelta += float64(m.LastDelta())
	}
	meanDelta /= float64(len(l.deps.Motors))

	dt := l.deps.Clock.Step().Seconds()
	var velocity float64
	if l.cfg.TicksPerRev > 0 {
		velocity = meanDelta / dt / l.cfg.TicksPerRev * l.cfg.WheelCircumM
	}

	voltage := l.cfg.NominalVoltage - l.cfg.SourceOhms*totalMA/1000

	return Snapshot{
		SimTime:     l.deps.Clock.Now(),
		Tick:        l.deps.Clock.Ticks(),
		State:       l.deps.Machine.State(),
		Motors:      motors,
		VelocityMS:  velocity,
		Voltage:     int32(math.Round(voltage)),
		GPIO:        GPIOBits(l.deps.Machine.State(), env, l.cfg.HeaterOnBelowC),
		Transitions: l.deps.Machine.DrainTransitions(),
	}
}

// Run paces the loop against the wall clock until the context is cancelled
// or the optional duration of simulation time has elapsed. A tick that
// overruns its period is logged and counted but always completes; ticks are
// never skipped, since a skipped step would corrupt encoder integration.
func (l *Loop) Run(ctx context.Context, duration time.Duration) error {
	period := l.deps.Clock.Step()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			l.RunTick()
			if over := time.Since(start) - period; over > 0 {
				l.overruns.Add(context.Background(), 1)
				l.deps.Logger.Warn("control tick overran its period",
					"overrun", over, "tick", l.deps.Clock.Ticks())
			}
			if duration > 0 && l.deps.Clock.Now() >= duration {
				return nil
			}
		}
	}
}
