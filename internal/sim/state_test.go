package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleStateEncoding(t *testing.T) {
	// Wire encoding of the vehicle_state enum channel.
	assert.Equal(t, VehicleState(0), StateIdle)
	assert.Equal(t, VehicleState(1), StateForwardDrive)
	assert.Equal(t, VehicleState(2), StateReverseDrive)
	assert.Equal(t, VehicleState(3), StateFault)
}

func TestCommandTable(t *testing.T) {
	tests := []struct {
		name    string
		from    VehicleState
		cmd     CommandKind
		want    VehicleState
		wantErr error
	}{
		{"idle forward", StateIdle, CommandForward, StateForwardDrive, nil},
		{"idle reverse", StateIdle, CommandReverse, StateReverseDrive, nil},
		{"idle stop is noop", StateIdle, CommandStop, StateIdle, nil},
		{"idle reset rejected", StateIdle, CommandReset, StateIdle, ErrInvalidCommand},
		{"forward stop", StateForwardDrive, CommandStop, StateIdle, nil},
		{"forward forward is noop", StateForwardDrive, CommandForward, StateForwardDrive, nil},
		{"forward reverse rejected", StateForwardDrive, CommandReverse, StateForwardDrive, ErrInvalidCommand},
		{"reverse stop", StateReverseDrive, CommandStop, StateIdle, nil},
		{"reverse forward rejected", StateReverseDrive, CommandForward, StateReverseDrive, ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateMachine(NewFaultRegistry(), 0)
			driveTo(t, m, tt.from)

			err := m.Command(tt.cmd, time.Second)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, m.State())
		})
	}
}

// driveTo walks the machine into the given state through valid commands.
func driveTo(t *testing.T, m *StateMachine, target VehicleState) {
	t.Helper()
	switch target {
	case StateIdle:
	case StateForwardDrive:
		require.NoError(t, m.Command(CommandForward, 0))
	case StateReverseDrive:
		require.NoError(t, m.Command(CommandReverse, 0))
	case StateFault:
		require.True(t, m.OnStall("a", 0))
	}
	m.DrainTransitions()
}

func TestFaultOnlyAcceptsReset(t *testing.T) {
	m := NewStateMachine(NewFaultRegistry(), 0)
	m.OnStall("b", time.Second)

	for _, cmd := range []CommandKind{CommandForward, CommandReverse, CommandStop} {
		err := m.Command(cmd, 2*time.Second)
		assert.ErrorIs(t, err, ErrInvalidCommand)
		assert.Equal(t, StateFault, m.State())
	}
}

func TestResetBlockedWhileFaultActive(t *testing.T) {
	faults := NewFaultRegistry()
	m := NewStateMachine(faults, 0)

	faults.Inject("c", FaultStuckWheel, time.Second)
	m.OnStall("c", time.Second)

	err := m.Command(CommandReset, 2*time.Second)
	assert.ErrorIs(t, err, ErrFaultStillPresent)
	assert.Equal(t, StateFault, m.State())
	assert.Equal(t, MotorID("c"), m.FaultMotor())

	// Clearing the fault makes reset succeed.
	faults.Clear("c")
	require.NoError(t, m.Command(CommandReset, 3*time.Second))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, MotorID(""), m.FaultMotor())
}

func TestOnStallFiresOnce(t *testing.T) {
	m := NewStateMachine(NewFaultRegistry(), 0)
	require.NoError(t, m.Command(CommandForward, 0))

	assert.True(t, m.OnStall("a", time.Second))
	assert.False(t, m.OnStall("a", 2*time.Second))
	assert.False(t, m.OnStall("b", 3*time.Second))
	assert.Equal(t, MotorID("a"), m.FaultMotor())

	trs := m.DrainTransitions()
	require.Len(t, trs, 2)
	assert.Equal(t, StateForwardDrive, trs[1].From)
	assert.Equal(t, StateFault, trs[1].To)
	assert.Contains(t, trs[1].Cause, "motor a")
}

func TestDrainTransitions(t *testing.T) {
	m := NewStateMachine(NewFaultRegistry(), 0)
	require.NoError(t, m.Command(CommandForward, time.Second))
	require.NoError(t, m.Command(CommandStop, 2*time.Second))

	trs := m.DrainTransitions()
	require.Len(t, trs, 2)
	assert.Equal(t, "State transition from Idle to Forward Drive (command forward)", trs[0].Message())
	assert.Equal(t, time.Second, trs[0].At)
	assert.Equal(t, 2*time.Second, trs[1].At)

	assert.Empty(t, m.DrainTransitions())
}

func TestTransitionLogBounded(t *testing.T) {
	m := NewStateMachine(NewFaultRegistry(), 4)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Command(CommandForward, time.Duration(i)*time.Second))
		require.NoError(t, m.Command(CommandStop, time.Duration(i)*time.Second))
	}
	assert.Len(t, m.DrainTransitions(), 4)
}

func TestParseCommand(t *testing.T) {
	for _, want := range []CommandKind{CommandForward, CommandReverse, CommandStop, CommandReset} {
		got, err := ParseCommand(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCommand("launch")
	assert.Error(t, err)
}
