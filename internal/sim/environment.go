package sim

import "fmt"

// EnvField names a mutable ambient condition.
type EnvField string

const (
	FieldLoadFactor        EnvField = "load_factor"
	FieldAmbientTempC      EnvField = "ambient_temp_c"
	FieldSurfaceResistance EnvField = "surface_resistance"
)

// ParseEnvField validates an environment field name.
func ParseEnvField(s string) (EnvField, error) {
	switch EnvField(s) {
	case FieldLoadFactor, FieldAmbientTempC, FieldSurfaceResistance:
		return EnvField(s), nil
	}
	return "", fmt.Errorf("unknown environment field %q", s)
}

// EnvironmentState is a read-only snapshot of ambient conditions.
type EnvironmentState struct {
	// LoadFactor scales the current required to move; 1.0 is flat ground.
	LoadFactor float64
	// AmbientTempC is the outside temperature motors cool towards.
	AmbientTempC float64
	// SurfaceResistance multiplies the load term; 1.0 is nominal terrain.
	SurfaceResistance float64
}

type envChange struct {
	field EnvField
	value float64
}

// Environment holds ambient conditions read by every motor each step.
// Writes are staged and applied atomically at the next tick boundary so a
// change can never land mid-step.
type Environment struct {
	current EnvironmentState
	staged  []envChange
}

// NewEnvironment creates an environment with the given initial conditions.
func NewEnvironment(initial EnvironmentState) *Environment {
	return &Environment{current: initial}
}

// Set stages a field change. Negative load factors are rejected; the
// remaining fields accept any finite value.
func (e *Environment) Set(field EnvField, value float64) error {
	if field == FieldLoadFactor && value < 0 {
		return fmt.Errorf("load_factor must be >= 0, got %v", value)
	}
	if field == FieldSurfaceResistance && value < 0 {
		return fmt.Errorf("surface_resistance must be >= 0, got %v", value)
	}
	e.staged = append(e.staged, envChange{field: field, value: value})
	return nil
}

// Commit applies all staged changes in order. Called by the control loop at
// the top of each tick, before any motor steps.
func (e *Environment) Commit() {
	for _, ch := range e.staged {
		switch ch.field {
		case FieldLoadFactor:
			e.current.LoadFactor = ch.value
		case FieldAmbientTempC:
			e.current.AmbientTempC = ch.value
		case FieldSurfaceResistance:
			e.current.SurfaceResistance = ch.value
		}
	}
	e.staged = e.staged[:0]
}

// Current returns the active ambient conditions.
func (e *Environment) Current() EnvironmentState {
	return e.current
}
