package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockAdvance(t *testing.T) {
	c := NewClock(50)

	assert.Equal(t, 20*time.Millisecond, c.Step())
	assert.Equal(t, time.Duration(0), c.Now())
	assert.Equal(t, uint64(0), c.Ticks())

	c.Advance()
	c.Advance()
	assert.Equal(t, 40*time.Millisecond, c.Now())
	assert.Equal(t, uint64(2), c.Ticks())
}

func TestClockSimTimeIsExact(t *testing.T) {
	c := NewClock(50)
	for i := 0; i < 50; i++ {
		c.Advance()
	}
	// 50 ticks at 50 Hz is exactly one simulated second.
	assert.Equal(t, time.Second, c.Now())
}
