package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSink holds every Publish until released.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Sample
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (b *blockingSink) Publish(s Sample) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, s)
	return nil
}

func (b *blockingSink) Close() error { return nil }

func (b *blockingSink) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestAsyncSinkDelivers(t *testing.T) {
	inner := &memSink{}
	s, err := NewAsyncSink(inner, 16, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Publish(Sample{Flow: FlowVehicle50Hz}))
	}
	require.NoError(t, s.Close())

	assert.Len(t, inner.samples, 5)
	assert.True(t, inner.closed)
	assert.Zero(t, s.Dropped())
}

func TestAsyncSinkNeverBlocksWhenFull(t *testing.T) {
	inner := newBlockingSink()
	s, err := NewAsyncSink(inner, 2, nil)
	require.NoError(t, err)

	// Fill the buffer (worker is stuck on the first sample), then keep
	// publishing. Publish must return immediately every time.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Publish(Sample{Flow: FlowVehicle50Hz})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	assert.Positive(t, s.Dropped())

	close(inner.release)
	require.NoError(t, s.Close())
}

func TestAsyncSinkCloseDrains(t *testing.T) {
	inner := &memSink{}
	s, err := NewAsyncSink(inner, 64, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		s.Publish(Sample{Flow: FlowVehicle10Hz})
	}
	require.NoError(t, s.Close())

	// Close waits for the worker, so every buffered sample lands.
	assert.Len(t, inner.samples, 20)
}

func TestAsyncSinkPublishAfterCloseRejected(t *testing.T) {
	inner := &memSink{}
	s, err := NewAsyncSink(inner, 8, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Publish(Sample{Flow: FlowVehicle50Hz}), ErrSinkClosed)
	assert.Empty(t, inner.samples)
}

func TestAsyncSinkCloseTimeout(t *testing.T) {
	inner := newBlockingSink()
	s, err := NewAsyncSink(inner, 8, nil)
	require.NoError(t, err)

	s.Publish(Sample{Flow: FlowVehicle50Hz})
	s.Publish(Sample{Flow: FlowVehicle50Hz})

	start := time.Now()
	require.NoError(t, s.CloseTimeout(50*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)

	close(inner.release)
}

func TestAsyncSinkQueueLen(t *testing.T) {
	inner := newBlockingSink()
	s, err := NewAsyncSink(inner, 8, nil)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		s.Publish(Sample{})
	}
	// The worker may have taken one off the buffer already.
	assert.GreaterOrEqual(t, s.QueueLen(), 3)

	close(inner.release)
	require.NoError(t, s.Close())
}

type failSink struct{ err error }

func (f *failSink) Publish(Sample) error { return f.err }
func (f *failSink) Close() error         { return f.err }

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	m := NewMultiSink(a, b)

	require.NoError(t, m.Publish(Sample{Flow: FlowVehicle10Hz}))
	assert.Len(t, a.samples, 1)
	assert.Len(t, b.samples, 1)

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMultiSinkContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	good := &memSink{}
	m := NewMultiSink(&failSink{err: boom}, good)

	err := m.Publish(Sample{})
	assert.ErrorIs(t, err, boom)
	// The healthy sink still got the sample.
	assert.Len(t, good.samples, 1)
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(nil)
	assert.NoError(t, s.Publish(Sample{
		Flow:   FlowVehicle50Hz,
		Fields: map[string]Value{"voltage": Int32Value(12)},
	}))
	assert.NoError(t, s.Close())
}
