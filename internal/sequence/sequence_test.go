package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roversim/mobility/internal/sim"
)

func cmd(at time.Duration, c sim.CommandKind) Event {
	return Event{At: at, Payload: sim.CommandPayload{Command: c}}
}

func inject(at time.Duration, motor sim.MotorID, kind sim.FaultKind) Event {
	return Event{At: at, Payload: sim.InjectFaultPayload{Motor: motor, Kind: kind}}
}

func clear(at time.Duration, motor sim.MotorID) Event {
	return Event{At: at, Payload: sim.ClearFaultPayload{Motor: motor}}
}

func TestNewValidSequence(t *testing.T) {
	seq, err := New([]Event{
		cmd(0, sim.CommandForward),
		inject(200*time.Millisecond, "b", sim.FaultStuckWheel),
		cmd(500*time.Millisecond, sim.CommandStop),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())

	// Indices are assigned in document order.
	for i, ev := range seq.Events() {
		assert.Equal(t, i, ev.Index)
	}
}

func TestNewRejectsDecreasingOffsets(t *testing.T) {
	_, err := New([]Event{
		cmd(500*time.Millisecond, sim.CommandForward),
		cmd(200*time.Millisecond, sim.CommandStop),
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Contains(t, verr.Reason, "offset decreases")
}

func TestNewRejectsNegativeOffset(t *testing.T) {
	_, err := New([]Event{cmd(-time.Second, sim.CommandForward)})
	assert.Error(t, err)
}

func TestNewRejectsUnknownPayload(t *testing.T) {
	_, err := New([]Event{{At: 0, Payload: "bogus"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payload type")
}

func TestNewRejectsContradictoryCommands(t *testing.T) {
	_, err := New([]Event{
		cmd(time.Second, sim.CommandForward),
		cmd(time.Second, sim.CommandReverse),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contradictory commands")
}

func TestNewAllowsRepeatedCommandAtSameOffset(t *testing.T) {
	_, err := New([]Event{
		cmd(time.Second, sim.CommandForward),
		cmd(time.Second, sim.CommandForward),
	})
	assert.NoError(t, err)
}

func TestNewRejectsInjectAndClearSameMotorSameOffset(t *testing.T) {
	_, err := New([]Event{
		inject(time.Second, "a", sim.FaultStuckWheel),
		clear(time.Second, "a"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motor a")
}

func TestNewAllowsInjectAndClearDifferentMotors(t *testing.T) {
	_, err := New([]Event{
		inject(time.Second, "a", sim.FaultStuckWheel),
		clear(time.Second, "b"),
	})
	assert.NoError(t, err)
}

func TestNewEmptySequence(t *testing.T) {
	seq, err := New(nil)
	require.NoError(t, err)
	assert.Zero(t, seq.Len())
}

func TestEventKind(t *testing.T) {
	assert.Equal(t, sim.EventKindCommand, cmd(0, sim.CommandForward).Kind())
	assert.Equal(t, sim.EventKindInjectFault, inject(0, "a", sim.FaultStuckWheel).Kind())
	assert.Equal(t, sim.EventKindClearFault, clear(0, "a").Kind())
	assert.Equal(t, sim.EventKindSetEnvironment,
		Event{Payload: sim.SetEnvironmentPayload{Field: sim.FieldLoadFactor, Value: 1}}.Kind())
}
