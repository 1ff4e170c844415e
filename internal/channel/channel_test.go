package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsImplementation(t *testing.T) {
	assert.IsType(t, &Buffered[int]{}, New[int](4))
	assert.IsType(t, &Unbuffered[int]{}, New[int](0))
	assert.IsType(t, &Unbuffered[int]{}, New[int](-1))
}

func TestBufferedSendReceive(t *testing.T) {
	ch := NewBuffered[int](2)
	ch.Send(1)
	ch.Send(2)
	assert.Equal(t, 2, ch.Len())

	assert.Equal(t, 1, <-ch.Receive())
	assert.Equal(t, 2, <-ch.Receive())
	assert.Zero(t, ch.Len())
}

func TestBufferedTrySend(t *testing.T) {
	ch := NewBuffered[int](1)

	assert.True(t, ch.TrySend(1))
	// Buffer full: TrySend refuses instead of blocking.
	assert.False(t, ch.TrySend(2))

	<-ch.Receive()
	assert.True(t, ch.TrySend(3))
}

func TestBufferedCloseDrains(t *testing.T) {
	ch := NewBuffered[int](4)
	ch.Send(1)
	ch.Send(2)
	ch.Close()

	var got []int
	for v := range ch.Receive() {
		got = append(got, v)
	}
	require.Equal(t, []int{1, 2}, got)
}

func TestUnbufferedTrySendNeedsReceiver(t *testing.T) {
	ch := NewUnbuffered[int]()
	// No receiver waiting.
	assert.False(t, ch.TrySend(1))
	assert.Zero(t, ch.Len())
}

func TestUnbufferedSendReceive(t *testing.T) {
	ch := NewUnbuffered[string]()
	done := make(chan string)
	go func() {
		done <- <-ch.Receive()
	}()

	ch.Send("hello")
	assert.Equal(t, "hello", <-done)
}
