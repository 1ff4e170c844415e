package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roversim/mobility/internal/sim"
)

// Flow names consumed by downstream schema configuration.
const (
	FlowVehicle10Hz = "vehicle_10_hz"
	FlowVehicle50Hz = "vehicle_50_hz"
	FlowStateLogs   = "state_logs"
	FlowSysLogs     = "sys_logs"
)

// Publisher samples simulation snapshots at two cadences: the full vehicle
// view at 10 Hz and the fast voltage/GPIO pair at 50 Hz. It observes every
// control tick and decides which flows are due, so both cadences stay
// phase-locked to the same clock. Publishing only reads snapshots; it never
// touches live simulation state.
type Publisher struct {
	sink     Sink
	start    time.Time
	interval uint64
	sys      *SysLogGenerator
	logger   *slog.Logger
}

// NewPublisher creates a publisher stamping samples relative to start.
// controlHz must be a multiple of telemetryHz. sys may be nil to disable
// the system log flow.
func NewPublisher(sink Sink, start time.Time, controlHz, telemetryHz int, sys *SysLogGenerator, logger *slog.Logger) (*Publisher, error) {
	if telemetryHz <= 0 || controlHz <= 0 || controlHz%telemetryHz != 0 {
		return nil, fmt.Errorf("control rate %d Hz is not a multiple of telemetry rate %d Hz",
			controlHz, telemetryHz)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		sink:     sink,
		start:    start,
		interval: uint64(controlHz / telemetryHz),
		sys:      sys,
		logger:   logger,
	}, nil
}

// ObserveTick publishes every flow due for this tick.
func (p *Publisher) ObserveTick(s sim.Snapshot) {
	ts := p.start.Add(s.SimTime)

	p.publish(Sample{
		Flow:      FlowVehicle50Hz,
		Timestamp: ts,
		Fields: map[string]Value{
			"voltage": Int32Value(s.Voltage),
			"gpio":    BitFieldValue(s.GPIO),
		},
	})

	if (s.Tick-1)%p.interval == 0 {
		p.publish(Sample{
			Flow:      FlowVehicle10Hz,
			Timestamp: ts,
			Fields:    vehicleFields(s),
		})

		if p.sys != nil {
			if line, ok := p.sys.Draw(); ok {
				p.publish(Sample{
					Flow:      FlowSysLogs,
					Timestamp: ts,
					Fields:    map[string]Value{"sys_log": StringValue(line)},
				})
			}
		}
	}

	for _, t := range s.Transitions {
		p.publish(Sample{
			Flow:      FlowStateLogs,
			Timestamp: p.start.Add(t.At),
			Fields:    map[string]Value{"log": StringValue(t.Message())},
		})
	}
}

func (p *Publisher) publish(s Sample) {
	if err := p.sink.Publish(s); err != nil {
		p.logger.Warn("publish failed", "flow", s.Flow, "error", err)
	}
}

// vehicleFields builds the 10 Hz flow: vehicle state, derived velocity and
// the per-motor encoder/current/temperature triple.
func vehicleFields(s sim.Snapshot) map[string]Value {
	fields := make(map[string]Value, 2+3*len(s.Motors))
	fields["vehicle_state"] = EnumValue(int32(s.State))
	fields["velocity"] = DoubleValue(s.VelocityMS)
	for _, m := range s.Motors {
		prefix := "motor_" + string(m.ID)
		fields[prefix+"_encoder"] = Int32Value(int32(m.EncoderCount))
		fields[prefix+"_current"] = DoubleValue(m.CurrentMA)
		fields[prefix+"_temperature"] = DoubleValue(m.TempC)
	}
	return fields
}
