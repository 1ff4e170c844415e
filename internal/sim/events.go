package sim

// Event kinds routed through the dispatcher. Each kind carries the matching
// payload type below.
const (
	EventKindCommand        = "command"
	EventKindSetEnvironment = "set_environment"
	EventKindInjectFault    = "inject_fault"
	EventKindClearFault     = "clear_fault"
)

// CommandPayload commands the vehicle state machine.
type CommandPayload struct {
	Command CommandKind
}

// SetEnvironmentPayload changes one ambient condition.
type SetEnvironmentPayload struct {
	Field EnvField
	Value float64
}

// InjectFaultPayload assigns a fault to a motor.
type InjectFaultPayload struct {
	Motor MotorID
	Kind  FaultKind
}

// ClearFaultPayload removes any fault from a motor.
type ClearFaultPayload struct {
	Motor MotorID
}
