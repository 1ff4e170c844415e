package dispatcher

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(slog.Default())
	require.NoError(t, err)
	return d
}

func TestDispatchRoutesToHandler(t *testing.T) {
	d := newTestDispatcher(t)

	var got Event
	d.Register("command", func(e Event) error {
		got = e
		return nil
	})

	ev := Event{Kind: "command", Payload: "forward", At: time.Second}
	require.NoError(t, d.Dispatch(ev))
	assert.Equal(t, ev, got)
}

func TestDispatchUnknownKind(t *testing.T) {
	d := newTestDispatcher(t)

	err := d.Dispatch(Event{Kind: "teleport"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
}

func TestDispatchPropagatesRejection(t *testing.T) {
	d := newTestDispatcher(t)

	boom := errors.New("not while driving")
	d.Register("command", func(Event) error { return boom })

	assert.ErrorIs(t, d.Dispatch(Event{Kind: "command"}), boom)
}

func TestHasHandler(t *testing.T) {
	d := newTestDispatcher(t)
	assert.False(t, d.HasHandler("command"))

	d.Register("command", func(Event) error { return nil })
	assert.True(t, d.HasHandler("command"))
}

func TestRegisterLogged(t *testing.T) {
	d := newTestDispatcher(t)

	calls := 0
	d.Register("command", func(Event) error {
		calls++
		return nil
	}, Logged())

	require.NoError(t, d.Dispatch(Event{Kind: "command"}))
	assert.Equal(t, 1, calls)
}

func TestRegisterOverwrites(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register("command", func(Event) error { return errors.New("old") })
	d.Register("command", func(Event) error { return nil })

	assert.NoError(t, d.Dispatch(Event{Kind: "command"}))
}
