package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/dispatch"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/logger"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

// Consumer is a per-caller handle on the shared client. Every dashboard
// view obtains its own Consumer; closing it releases exactly the handler
// registrations and channel references made through it. The shared
// connection itself is untouched.
type Consumer struct {
	id     string
	client *Client

	mu        sync.Mutex
	disposers []func()
	closed    bool
}

// Consumer creates a new per-caller handle.
func (c *Client) Consumer() *Consumer {
	return &Consumer{
		id:     uuid.NewString(),
		client: c,
	}
}

// ID returns the handle's unique identifier.
func (s *Consumer) ID() string {
	return s.id
}

// track records a disposer, or runs it immediately if the consumer was
// already closed (late registrations must not leak).
func (s *Consumer) track(dispose func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		dispose()

		return
	}

	s.disposers = append(s.disposers, dispose)
	s.mu.Unlock()
}

// Subscribe registers this consumer's interest in a channel.
func (s *Consumer) Subscribe(channel string) {
	s.track(s.client.Subscribe(channel))
}

// On registers a handler for all frames of a type.
func (s *Consumer) On(typ wire.MessageType, fn dispatch.Handler) {
	s.track(s.client.On(typ, fn))
}

// OnChannel registers a handler for frames of a type on one channel.
func (s *Consumer) OnChannel(typ wire.MessageType, channel string, fn dispatch.Handler) {
	s.track(s.client.OnChannel(typ, channel, fn))
}

// OnConnect registers a connection callback owned by this consumer.
func (s *Consumer) OnConnect(fn func()) {
	s.track(s.client.OnConnect(fn))
}

// OnDisconnect registers a disconnection callback owned by this consumer.
func (s *Consumer) OnDisconnect(fn func()) {
	s.track(s.client.OnDisconnect(fn))
}

// Send writes one frame through the shared connection.
func (s *Consumer) Send(f *wire.Frame) bool {
	return s.client.Send(f)
}

// Close releases everything registered through this consumer. Calling it
// more than once is safe. Future frames never reach this consumer's
// handlers; a frame already mid-dispatch may still be delivered once.
func (s *Consumer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	disposers := s.disposers
	s.disposers = nil
	s.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}

	logger.Debug("Consumer closed", "consumer_id", s.id, "registrations", len(disposers))
}
