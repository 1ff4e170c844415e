package logging

import (
	"context"
	"errors"
	"log/slog"
)

// RunAttrs supplies the attributes describing the live run, such as the
// asset name and the current simulation tick. It is called once per record
// so the values stay fresh while the control loop advances.
type RunAttrs func() []slog.Attr

// fanoutHandler copies every record to all configured outputs (stdout, the
// run log file, and the optional GELF and OTel handlers). Nil targets are
// dropped at construction so optional outputs can be passed unconditionally.
type fanoutHandler struct {
	targets []slog.Handler
}

func newFanout(targets ...slog.Handler) *fanoutHandler {
	kept := make([]slog.Handler, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &fanoutHandler{targets: kept}
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, t := range f.targets {
		if t.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled target. A failing target does
// not block the others.
func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, t := range f.targets {
		if !t.Enabled(ctx, r.Level) {
			continue
		}
		if err := t.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	targets := make([]slog.Handler, len(f.targets))
	for i, t := range f.targets {
		targets[i] = t.WithAttrs(attrs)
	}
	return &fanoutHandler{targets: targets}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	targets := make([]slog.Handler, len(f.targets))
	for i, t := range f.targets {
		targets[i] = t.WithGroup(name)
	}
	return &fanoutHandler{targets: targets}
}

// runContextHandler stamps each record with the run attributes before
// handing it to the fanout, so every output sees the same asset and tick.
type runContextHandler struct {
	inner slog.Handler
	attrs RunAttrs
}

func newRunContext(inner slog.Handler, attrs RunAttrs) *runContextHandler {
	return &runContextHandler{inner: inner, attrs: attrs}
}

func (h *runContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *runContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.attrs != nil {
		if extra := h.attrs(); len(extra) > 0 {
			r.AddAttrs(extra...)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *runContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runContextHandler{inner: h.inner.WithAttrs(attrs), attrs: h.attrs}
}

func (h *runContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &runContextHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}
