// Package dispatch routes inbound frames to registered handlers.
//
// Handlers are invoked synchronously in registration order on the goroutine
// that decoded the frame, so per-type arrival order is preserved end to end.
// Iteration happens over a snapshot of the registration list: a handler may
// register or dispose handlers mid-dispatch without corrupting the pass,
// at the cost of at most one extra delivery after disposal.
package dispatch

import (
	"sync"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/logger"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/metrics"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

// Handler consumes one inbound frame.
type Handler func(*wire.Frame)

// Disposer permanently removes a registration when invoked.
// Calling it more than once is safe.
type Disposer func()

// registration is one (channel filter, callback) pair. An empty channel
// matches frames on any channel.
type registration struct {
	id      uint64
	channel string
	fn      Handler
}

// Table maps frame types to ordered handler registrations.
type Table struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[wire.MessageType][]registration
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{
		handlers: make(map[wire.MessageType][]registration),
	}
}

// On registers a handler for all frames of the given type regardless of
// channel. Handlers for the same type run in registration order.
func (t *Table) On(typ wire.MessageType, fn Handler) Disposer {
	return t.register(typ, "", fn)
}

// OnChannel registers a handler for frames of the given type scoped to one
// channel. Frames on other channels do not reach the handler.
func (t *Table) OnChannel(typ wire.MessageType, channel string, fn Handler) Disposer {
	return t.register(typ, channel, fn)
}

func (t *Table) register(typ wire.MessageType, channel string, fn Handler) Disposer {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.handlers[typ] = append(t.handlers[typ], registration{
		id:      id,
		channel: channel,
		fn:      fn,
	})
	t.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			t.remove(typ, id)
		})
	}
}

func (t *Table) remove(typ wire.MessageType, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	regs := t.handlers[typ]
	for i, reg := range regs {
		if reg.id == id {
			t.handlers[typ] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}

	if len(t.handlers[typ]) == 0 {
		delete(t.handlers, typ)
	}
}

// Dispatch delivers a frame to every matching handler, synchronously, in
// registration order. A panicking handler is recovered and must not stop
// delivery to the remaining handlers.
func (t *Table) Dispatch(f *wire.Frame) {
	t.mu.RLock()
	snapshot := t.handlers[f.Type]
	t.mu.RUnlock()

	delivered := 0

	for _, reg := range snapshot {
		if reg.channel != "" && reg.channel != f.Channel {
			continue
		}

		t.invoke(reg, f)
		delivered++
	}

	if delivered == 0 {
		metrics.FramesDropped.WithLabelValues(metrics.DropUnhandled).Inc()
		logger.Debug("No handler for frame", "type", f.Type, "channel", f.Channel)
	}
}

// invoke runs a single handler with panic isolation.
func (t *Table) invoke(reg registration, f *wire.Frame) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			logger.Error("Handler panicked",
				"type", f.Type,
				"channel", f.Channel,
				"panic", r,
			)
		}
	}()

	reg.fn(f)
}

// Len returns the number of live registrations for a type. Used by tests
// and the health endpoint.
func (t *Table) Len(typ wire.MessageType) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.handlers[typ])
}
