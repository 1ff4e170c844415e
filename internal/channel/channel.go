// Package channel provides generic channel interfaces for decoupled
// communication between the control task and sink workers.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// TrySend sends without blocking and reports whether the value was
	// accepted. The control task uses this so a slow consumer can never
	// stall a tick.
	TrySend(T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// New creates a buffered channel of the given size, falling back to an
// unbuffered one for size <= 0.
func New[T any](size int) Channel[T] {
	if size <= 0 {
		return NewUnbuffered[T]()
	}
	return NewBuffered[T](size)
}
