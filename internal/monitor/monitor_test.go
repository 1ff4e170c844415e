package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roversim/mobility/internal/logging"
)

type fakeTicks struct{ n uint64 }

func (f *fakeTicks) TicksDone() uint64 { return f.n }

type fakeSink struct {
	queue   int
	dropped int64
}

func (f *fakeSink) QueueLen() int   { return f.queue }
func (f *fakeSink) Dropped() int64   { return f.dropped }

func TestCollect(t *testing.T) {
	ticks := &fakeTicks{n: 100}
	sink := &fakeSink{queue: 7, dropped: 2}

	s := NewService(Dependencies{
		LogManager: logging.NewSlogManager(),
		Ticks:      ticks,
		Sink:       sink,
	})

	st := s.Collect()
	assert.Equal(t, uint64(100), st.Ticks)
	assert.Equal(t, 7, st.QueueLen)
	assert.Equal(t, int64(2), st.Dropped)
	// first collection has no baseline for the rate
	assert.Zero(t, st.TicksPerSec)

	ticks.n = 150
	time.Sleep(10 * time.Millisecond)
	st = s.Collect()
	assert.Equal(t, uint64(150), st.Ticks)
	assert.Greater(t, st.TicksPerSec, 0.0)
}

func TestCollectWithoutSink(t *testing.T) {
	s := NewService(Dependencies{
		LogManager: logging.NewSlogManager(),
		Ticks:      &fakeTicks{n: 5},
	})

	st := s.Collect()
	assert.Equal(t, uint64(5), st.Ticks)
	assert.Zero(t, st.QueueLen)
	assert.Zero(t, st.Dropped)
}

func TestStartStop(t *testing.T) {
	s := NewService(Dependencies{
		LogManager: logging.NewSlogManager(),
		Ticks:      &fakeTicks{},
		Interval:   5 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	// second start is a no-op
	require.NoError(t, s.Start())

	s.Stop()
	assert.Eventually(t, func() bool { return !s.IsRunning() },
		time.Second, 5*time.Millisecond)
}
