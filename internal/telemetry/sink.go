package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roversim/mobility/internal/channel"
)

// Sample is one publish call: a named flow, its channel values and the
// sample timestamp.
type Sample struct {
	Flow      string
	Fields    map[string]Value
	Timestamp time.Time
}

// Sink receives telemetry samples. Implementations decide transport,
// batching and retry; the core only requires that Publish not corrupt
// simulation state on failure.
type Sink interface {
	Publish(s Sample) error
	Close() error
}

// AsyncSink decouples the control task from sink I/O: Publish enqueues into
// a bounded buffer serviced by a worker goroutine, and drops the sample when
// the buffer is full. A slow or dead downstream can therefore never stall a
// control tick.
type AsyncSink struct {
	inner  Sink
	buf    channel.Channel[Sample]
	logger *slog.Logger

	dropped atomic.Int64
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once

	droppedCtr metric.Int64Counter
}

// ErrSinkClosed is returned by Publish after Close has been called.
var ErrSinkClosed = errors.New("telemetry: sink closed")

// NewAsyncSink wraps inner with a buffer of the given size and starts the
// worker.
func NewAsyncSink(inner Sink, size int, logger *slog.Logger) (*AsyncSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		inner:  inner,
		buf:    channel.New[Sample](size),
		logger: logger,
		done:   make(chan struct{}),
	}

	m := meter()
	var err error
	s.droppedCtr, err = m.Int64Counter(
		"telemetry.publishes.dropped",
		metric.WithDescription("Samples dropped because the sink buffer was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	_, err = m.Int64ObservableGauge(
		"telemetry.sink.queue",
		metric.WithDescription("Samples waiting in the sink buffer"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.buf.Len()))
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue gauge: %w", err)
	}

	go s.worker()
	return s, nil
}

// Publish enqueues the sample without blocking. A full buffer drops the
// sample and reports it as a warning. After Close the sample is rejected
// with ErrSinkClosed.
func (s *AsyncSink) Publish(sample Sample) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if s.buf.TrySend(sample) {
		return nil
	}
	n := s.dropped.Add(1)
	s.droppedCtr.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("flow", sample.Flow)))
	if n == 1 || n%100 == 0 {
		s.logger.Warn("sink buffer full, dropping sample",
			"flow", sample.Flow, "totalDropped", n)
	}
	return nil
}

// Dropped returns the number of samples dropped so far.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// QueueLen returns the number of samples waiting for the worker.
func (s *AsyncSink) QueueLen() int {
	return s.buf.Len()
}

// Close stops accepting samples and lets the worker drain the buffer. It
// returns once the worker has exited; pair with CloseTimeout when the
// downstream may hang.
func (s *AsyncSink) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.buf.Close()
	})
	<-s.done
	return s.inner.Close()
}

// CloseTimeout drains like Close but gives up after the timeout, dropping
// whatever is still buffered and reporting the count.
func (s *AsyncSink) CloseTimeout(timeout time.Duration) error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.buf.Close()
	})
	select {
	case <-s.done:
	case <-time.After(timeout):
		s.logger.Warn("sink drain timed out, dropping buffered samples",
			"remaining", s.buf.Len())
	}
	return s.inner.Close()
}

func (s *AsyncSink) worker() {
	defer close(s.done)
	for sample := range s.buf.Receive() {
		if err := s.inner.Publish(sample); err != nil {
			s.logger.Warn("sink publish failed",
				"flow", sample.Flow, "error", err)
		}
	}
}

// MultiSink fans every sample out to all sinks. A failing sink does not
// stop the others; the first error is returned.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out over the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Publish forwards the sample to every sink.
func (m *MultiSink) Publish(sample Sample) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Publish(sample); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogSink writes samples to the structured log. Useful for development and
// as a safe default when no external sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish logs the sample.
func (l *LogSink) Publish(sample Sample) error {
	attrs := make([]any, 0, 2+2*len(sample.Fields))
	attrs = append(attrs, "flow", sample.Flow)
	for name, v := range sample.Fields {
		attrs = append(attrs, name, v.String())
	}
	l.logger.Debug("telemetry sample", attrs...)
	return nil
}

// Close is a no-op.
func (l *LogSink) Close() error {
	return nil
}
