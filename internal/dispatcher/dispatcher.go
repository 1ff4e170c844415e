package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one scripted simulation event released by the sequence engine.
// Kind selects the handler; Payload carries the kind-specific data.
type Event struct {
	Kind    string
	Payload any
	At      time.Duration
}

// HandlerFunc applies an event to its owning component. Handlers run
// synchronously in control-tick context so every state change stays
// serialized through the tick.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes sequence events to registered handlers and counts the
// outcomes.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	applied  metric.Int64Counter
	rejected metric.Int64Counter
}

// New creates a new Dispatcher with the given logger. Uses the global OTel
// meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := meter()

	var err error

	d.applied, err = m.Int64Counter(
		"sequence.events.applied",
		metric.WithDescription("Total sequence events applied to the simulation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}

	d.rejected, err = m.Int64Counter(
		"sequence.events.rejected",
		metric.WithDescription("Total sequence events rejected by their owner"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event kind with optional
// configuration.
func (d *Dispatcher) Register(kind string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(kind, handler)
	}

	d.handlers[kind] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) error {
	h, ok := d.handlers[e.Kind]
	if !ok {
		return fmt.Errorf("unknown event kind: %s", e.Kind)
	}

	kindAttr := attribute.String("kind", e.Kind)
	if err := h(e); err != nil {
		d.rejected.Add(context.Background(), 1, metric.WithAttributes(kindAttr))
		return err
	}
	d.applied.Add(context.Background(), 1, metric.WithAttributes(kindAttr))
	return nil
}

// HasHandler returns true if a handler is registered for the event kind.
func (d *Dispatcher) HasHandler(kind string) bool {
	_, ok := d.handlers[kind]
	return ok
}

func (d *Dispatcher) withLogging(kind string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		d.logger.Debug("applying event", "kind", kind, "at", e.At)

		err := h(e)

		if err != nil {
			d.logger.Error("event rejected", "kind", kind, "at", e.At, "error", err)
		} else {
			d.logger.Debug("event applied", "kind", kind, "at", e.At)
		}

		return err
	}
}
