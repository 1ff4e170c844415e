package sim

// GPIO bit assignments for the discrete-state bit-field channel. The layout
// matches the vehicle's power distribution board.
const (
	GPIO12V     byte = 1 << 0
	GPIOCharge  byte = 1 << 1
	GPIOLed1    byte = 1 << 2
	GPIOLed2    byte = 1 << 3
	GPIOCamera1 byte = 1 << 4
	GPIOCamera2 byte = 1 << 5
	GPIOHeater1 byte = 1 << 6
	GPIOHeater2 byte = 1 << 7
)

// GPIOBits derives the discrete output state from the vehicle state and
// ambient conditions: the 12V rail and a direction LED are energized while
// driving, and both heaters switch on below the heater threshold.
func GPIOBits(state VehicleState, env EnvironmentState, heaterOnBelowC float64) byte {
	var bits byte

	switch state {
	case StateForwardDrive:
		bits |= GPIO12V | GPIOLed1
	case StateReverseDrive:
		bits |= GPIO12V | GPIOLed2
	}

	if env.AmbientTempC < heaterOnBelowC {
		bits |= GPIOHeater1 | GPIOHeater2
	}

	return bits
}
