package sim

import "time"

// Clock is the authoritative simulation time source. It advances in fixed
// steps; every other component reads elapsed time from it instead of the
// wall clock, which keeps runs reproducible.
type Clock struct {
	step  time.Duration
	ticks uint64
}

// NewClock creates a clock stepping at the given control frequency.
func NewClock(controlHz int) *Clock {
	if controlHz <= 0 {
		controlHz = 50
	}
	return &Clock{step: time.Second / time.Duration(controlHz)}
}

// Step returns the duration of one control tick.
func (c *Clock) Step() time.Duration {
	return c.step
}

// Now returns the simulation time elapsed since the run started.
func (c *Clock) Now() time.Duration {
	return time.Duration(c.ticks) * c.step
}

// Ticks returns the number of completed control ticks.
func (c *Clock) Ticks() uint64 {
	return c.ticks
}

// Advance moves the clock forward by one control tick.
func (c *Clock) Advance() {
	c.ticks++
}
