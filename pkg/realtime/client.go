// Package realtime wires the connection, subscription registry, dispatch
// table and presence tracker into the facade consumed by dashboard code.
//
// One Client is shared per process. Independent callers obtain their own
// Consumer handles; disposing a handle releases exactly that caller's
// handler registrations and channel references, never another caller's,
// and never tears down the shared connection. Only an explicit Disconnect
// ends the session.
package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/auth"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/config"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/conn"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/dispatch"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/logger"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/presence"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/subs"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

// Client is the process-wide realtime update client.
type Client struct {
	cfg *config.Config

	conn     *conn.Conn
	subs     *subs.Registry
	table    *dispatch.Table
	presence *presence.Tracker

	healthServer *healthServer
	startTime    time.Time
}

// New creates a Client from configuration. The connection is not opened
// until Connect is called.
func New(cfg *config.Config) (*Client, error) {
	c := &Client{
		cfg:       cfg,
		subs:      subs.NewRegistry(),
		table:     dispatch.NewTable(),
		presence:  presence.NewTracker(),
		startTime: time.Now(),
	}

	if cfg.Token != "" {
		if claims, err := auth.ParseUnverified(cfg.Token); err != nil {
			logger.Warn("Could not decode access token", "error", err)
		} else if claims.IsExpired() {
			logger.Warn("Access token is already expired, the server will likely reject the connection",
				"expired_at", claims.ExpiresAt.Time,
			)
		} else {
			logger.Debug("Access token decoded", "expires_in", claims.ExpiresIn())
		}
	}

	cn, err := conn.New(conn.Options{
		URL:               cfg.ServerURL,
		Token:             cfg.Token,
		DialTimeout:       cfg.ConnectTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		InitialBackoff:    cfg.InitialBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		MaxRetries:        cfg.MaxRetries,
	}, c.table.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	c.conn = cn

	// Registered first: the wire subscription list is resynchronized on
	// every open before any consumer OnConnect callback runs.
	c.conn.OnOpen(c.replaySubscriptions)

	// Presence is just one more dispatch consumer.
	c.table.On(wire.TypeUserOnline, c.presence.Apply)
	c.table.On(wire.TypeUserOffline, c.presence.Apply)

	return c, nil
}

// Connect opens the shared connection and, when configured, starts the
// health check server.
func (c *Client) Connect() error {
	if c.cfg.HealthCheckPort > 0 && c.healthServer == nil {
		c.healthServer = newHealthServer(c, c.cfg.HealthCheckPort)
		if err := c.healthServer.Start(); err != nil {
			return fmt.Errorf("failed to start health check server: %w", err)
		}
	}

	return c.conn.Connect()
}

// Disconnect tears down the shared connection and resets derived presence
// state. Handler registrations and channel references survive, so a later
// Connect resumes with the same interest set.
func (c *Client) Disconnect() error {
	err := c.conn.Close()

	// Presence spans the app session; it resets only here, on full
	// disconnect, not on transient reconnects.
	c.presence.Reset()

	if c.healthServer != nil {
		c.healthServer.Stop()
		c.healthServer = nil
	}

	return err
}

// Subscribe registers interest in a channel and returns a disposer that
// releases exactly this reference. The subscribe frame goes on the wire
// immediately when the connection is open and this was the first
// reference; otherwise the channel is recorded for replay on next open.
func (c *Client) Subscribe(channel string) func() {
	if c.subs.Add(channel) && c.conn.IsOpen() {
		c.conn.Send(wire.NewSubscribe(channel))
	}

	logger.Debug("Channel subscribed", "channel", channel, "refs", c.subs.Count(channel))

	var once sync.Once

	return func() {
		once.Do(func() {
			c.Unsubscribe(channel)
		})
	}
}

// Unsubscribe releases one reference to a channel. The unsubscribe frame
// is sent only when the last reference goes, and only best-effort: the
// server garbage-collects stale subscriptions on its own session timeout.
func (c *Client) Unsubscribe(channel string) {
	if c.subs.Remove(channel) && c.conn.IsOpen() {
		c.conn.Send(wire.NewUnsubscribe(channel))
	}
}

// Send writes one frame to the server. Returns false without queueing
// when the connection is not open; callers needing delivery guarantees
// must buffer and retry themselves.
func (c *Client) Send(f *wire.Frame) bool {
	return c.conn.Send(f)
}

// On registers a handler for all frames of a type. Returns a disposer.
func (c *Client) On(typ wire.MessageType, fn dispatch.Handler) dispatch.Disposer {
	return c.table.On(typ, fn)
}

// OnChannel registers a handler for frames of a type on one channel.
func (c *Client) OnChannel(typ wire.MessageType, channel string, fn dispatch.Handler) dispatch.Disposer {
	return c.table.OnChannel(typ, channel, fn)
}

// OnConnect registers a callback fired once per transition into the open
// state, including every reconnect. Consumers do not need to special-case
// reconnection.
func (c *Client) OnConnect(fn func()) func() {
	return c.conn.OnOpen(fn)
}

// OnDisconnect registers a callback fired when the connection is lost or
// explicitly closed.
func (c *Client) OnDisconnect(fn func()) func() {
	return c.conn.OnClosed(fn)
}

// State returns the current connection state.
func (c *Client) State() conn.State {
	return c.conn.State()
}

// Presence returns the derived online-user tracker.
func (c *Client) Presence() *presence.Tracker {
	return c.presence
}

// Channels returns a snapshot of all channels currently subscribed.
func (c *Client) Channels() []string {
	return c.subs.Channels()
}

// replaySubscriptions pushes the full registry content as subscribe
// frames. Runs on every transition into the open state.
func (c *Client) replaySubscriptions() {
	channels := c.subs.Channels()
	if len(channels) == 0 {
		return
	}

	logger.Info("Replaying subscriptions", "channels", len(channels))

	for _, ch := range channels {
		c.conn.Send(wire.NewSubscribe(ch))
	}
}
