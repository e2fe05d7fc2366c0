// Package conn owns the transport lifecycle for the realtime client.
//
// A Conn is a single persistent WebSocket connection modeled as an explicit
// state machine: closed -> connecting -> open -> (reconnecting <-> connecting)
// -> closed. Transport failures are recovered automatically behind an
// exponential backoff with jitter; consumers observe only OnOpen/OnClosed
// callbacks and never see a transport error directly.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/logger"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/metrics"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

// Default timing parameters, used when Options leaves them zero.
const (
	DefaultDialTimeout       = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 75 * time.Second
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
)

// FrameHandler consumes decoded inbound application frames.
type FrameHandler func(*wire.Frame)

// Options configures a Conn. URL is required; the rest falls back to the
// package defaults. Token, when set, is attached to the dial URL as a
// query parameter; it is supplied and refreshed by an external
// collaborator, never managed here.
type Options struct {
	URL               string
	Token             string
	DialTimeout       time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	MaxRetries        int // 0 = retry forever
}

// callback is one registered lifecycle callback.
type callback struct {
	id uint64
	fn func()
}

// Conn is the process-wide connection. It is the only owner of socket
// state; all other components observe it through callbacks and Send.
type Conn struct {
	opts    Options
	onFrame FrameHandler

	// mu guards state, ws, attempt, lastErr, retrying and the
	// session/connection contexts. writeMu serializes writes to the socket.
	mu      sync.Mutex
	writeMu sync.Mutex

	state    State
	ws       *websocket.Conn
	attempt  int
	lastErr  error
	retrying bool

	// Session lifetime: created by Connect, cancelled by Disconnect.
	ctx    context.Context
	cancel context.CancelFunc

	// Per-connection lifetime: recreated on every successful dial.
	connCtx    context.Context
	connCancel context.CancelFunc

	wg sync.WaitGroup

	lastPong atomic.Int64 // unix nanos of the last pong frame

	cbMu     sync.Mutex
	nextCBID uint64
	onOpen   []callback
	onClosed []callback
}

// New creates a connection. onFrame receives every inbound application
// frame; ping/pong control frames are consumed internally.
func New(opts Options, onFrame FrameHandler) (*Conn, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("conn: URL is required")
	}

	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}

	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}

	return &Conn{
		opts:    opts,
		onFrame: onFrame,
		state:   StateClosed,
	}, nil
}

// Connect opens the transport. It is only valid from the closed state.
// If the first dial fails the machine moves to reconnecting and keeps
// retrying in the background; the dial error is returned so callers know
// the connection is not yet live, but no action is required from them.
func (c *Conn) Connect() error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	ctx := c.ctx
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		retry := c.state == StateConnecting
		if retry {
			c.setStateLocked(StateReconnecting)
		}
		c.mu.Unlock()

		if retry {
			c.startReconnectLoop()
		}

		return fmt.Errorf("initial dial failed, retrying in background: %w", err)
	}

	c.finishOpen(ws)

	return nil
}

// Disconnect tears the connection down and cancels any pending retry.
// OnClosed fires at most once if the machine was open or connecting.
// Disconnect is terminal for the session; a later Connect starts fresh.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}

	wasActive := c.state == StateOpen || c.state == StateConnecting

	if c.connCancel != nil {
		c.connCancel()
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.ws != nil {
		//nolint:errcheck // Best-effort close notification
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(time.Second),
		)
		c.ws.Close()
		c.ws = nil
	}

	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if wasActive {
		c.fire(&c.onClosed)
	}

	logger.Info("Connection closed")

	return nil
}

// Close disconnects and waits for all background goroutines to exit.
func (c *Conn) Close() error {
	err := c.Disconnect()
	c.wg.Wait()

	return err
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// IsOpen reports whether frames can currently be sent.
func (c *Conn) IsOpen() bool {
	return c.State() == StateOpen
}

// Attempt returns the current reconnect attempt counter. It resets to
// zero every time the connection reaches the open state.
func (c *Conn) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempt
}

// LastError returns the most recent transport error, if any.
func (c *Conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastErr
}

// LastPong returns the receive time of the most recent pong frame.
func (c *Conn) LastPong() time.Time {
	n := c.lastPong.Load()
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n)
}

// Send writes one frame to the transport. It returns false without
// queueing when the connection is not open; callers needing guaranteed
// delivery must buffer and retry themselves.
func (c *Conn) Send(f *wire.Frame) bool {
	c.mu.Lock()
	if c.state != StateOpen || c.ws == nil {
		c.mu.Unlock()
		metrics.SendRejected.Inc()

		return false
	}
	ws := c.ws
	c.mu.Unlock()

	data, err := f.Encode()
	if err != nil {
		logger.Error("Failed to encode outbound frame", "type", f.Type, "error", err)
		return false
	}

	c.writeMu.Lock()
	err = ws.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		logger.Warn("Transport write failed", "type", f.Type, "error", err)
		c.transportFailed(ws, err)

		return false
	}

	metrics.FramesSent.WithLabelValues(f.Type.String()).Inc()

	return true
}

// OnOpen registers a callback fired exactly once per transition into the
// open state, including every reconnect. Returns a disposer.
func (c *Conn) OnOpen(fn func()) func() {
	return c.addCallback(&c.onOpen, fn)
}

// OnClosed registers a callback fired when the connection leaves the open
// state (transport failure or explicit disconnect). Returns a disposer.
func (c *Conn) OnClosed(fn func()) func() {
	return c.addCallback(&c.onClosed, fn)
}

// dialURL builds the dial target, attaching the configured token as a
// query parameter when present.
func (c *Conn) dialURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if c.opts.Token != "" {
		q := u.Query()
		q.Set("token", c.opts.Token)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// dial opens the raw WebSocket with the configured handshake timeout.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.dialURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.DialTimeout,
	}

	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(dctx, target, nil)
	if resp != nil && resp.Body != nil {
		//nolint:errcheck // Best-effort close of HTTP response body
		defer resp.Body.Close()
	}

	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed (status %d): %w", resp.StatusCode, err)
		}

		return nil, fmt.Errorf("dial failed: %w", err)
	}

	return ws, nil
}

// finishOpen installs a freshly dialed socket, moves to the open state and
// fires OnOpen callbacks in registration order. The subscription replay
// hook is registered first by the facade, so the wire subscription list is
// resynchronized before any consumer callback observes the connection.
func (c *Conn) finishOpen(ws *websocket.Conn) {
	c.mu.Lock()
	if c.state == StateClosed {
		// Disconnected while the dial was in flight.
		c.mu.Unlock()
		ws.Close()

		return
	}

	c.ws = ws
	c.attempt = 0
	c.lastErr = nil
	c.connCtx, c.connCancel = context.WithCancel(c.ctx)
	connCtx := c.connCtx
	c.lastPong.Store(time.Now().UnixNano())
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(ws, connCtx)
	go c.heartbeatLoop(ws, connCtx)

	c.fire(&c.onOpen)

	logger.Info("Connection open")
}

// transportFailed handles an error on the current socket: it tears the
// socket down, fires OnClosed once and starts the reconnect loop. Stale
// sockets from a previous connection are ignored.
func (c *Conn) transportFailed(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws || c.state != StateOpen {
		c.mu.Unlock()
		return
	}

	c.lastErr = err

	if c.connCancel != nil {
		c.connCancel()
	}

	c.ws.Close()
	c.ws = nil
	c.setStateLocked(StateReconnecting)
	c.mu.Unlock()

	c.fire(&c.onClosed)

	logger.Warn("Connection lost, scheduling reconnect", "error", err)

	c.startReconnectLoop()
}

// readLoop reads frames from one socket until it fails or the connection
// context is cancelled.
func (c *Conn) readLoop(ws *websocket.Conn, ctx context.Context) {
	defer c.wg.Done()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				// Clean shutdown, not a transport failure.
				return
			default:
			}

			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Transport read error", "error", err)
			}

			c.transportFailed(ws, err)

			return
		}

		c.handleData(data)
	}
}

// handleData decodes one inbound message and routes it. Malformed and
// unknown frames are dropped with a counter increment and never reach a
// handler. Pong frames feed the heartbeat; server pings are answered.
func (c *Conn) handleData(data []byte) {
	f, err := wire.Decode(data)
	if err != nil {
		reason := metrics.DropMalformed
		if errors.Is(err, wire.ErrUnknownType) {
			reason = metrics.DropUnknown
		}

		metrics.FramesDropped.WithLabelValues(reason).Inc()
		logger.Debug("Dropped inbound frame", "error", err)

		return
	}

	metrics.FramesReceived.WithLabelValues(f.Type.String()).Inc()

	switch f.Type {
	case wire.TypePong:
		c.lastPong.Store(time.Now().UnixNano())
	case wire.TypePing:
		c.Send(wire.NewPong())
	default:
		if c.onFrame != nil {
			c.onFrame(f)
		}
	}
}

// heartbeatLoop sends a ping frame on a fixed interval while the
// connection is open. A missing pong within the timeout forces the same
// failure path as a transport close, bounding detection latency for
// silently dead connections.
func (c *Conn) heartbeatLoop(ws *websocket.Conn, ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, c.lastPong.Load())
			if time.Since(last) > c.opts.HeartbeatTimeout {
				metrics.HeartbeatTimeouts.Inc()
				logger.Warn("Heartbeat timed out, dropping connection", "last_pong", last)
				// Closing the socket surfaces as a read error in
				// readLoop, which drives the reconnect path.
				ws.Close()

				return
			}

			if !c.Send(wire.NewPing()) {
				return
			}
		}
	}
}

// startReconnectLoop spawns the single reconnect goroutine if one is not
// already running. The retrying flag shares mu with state, so a failure
// observed while the previous loop is deciding whether to exit can never
// leave the machine in the reconnecting state with no goroutine behind it.
func (c *Conn) startReconnectLoop() {
	c.mu.Lock()
	if c.retrying {
		c.mu.Unlock()
		return
	}

	c.retrying = true
	ctx := c.ctx
	c.mu.Unlock()

	c.wg.Add(1)

	go c.reconnectLoop(ctx)
}

// stopRetrying clears the retrying flag. Called on every exit path of
// reconnectLoop.
func (c *Conn) stopRetrying() {
	c.mu.Lock()
	c.retrying = false
	c.mu.Unlock()
}

// reconnectLoop retries the dial behind an exponential backoff until it
// succeeds, the session is disconnected, or the retry budget is spent.
func (c *Conn) reconnectLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if c.state != StateReconnecting {
			c.retrying = false
			c.mu.Unlock()

			return
		}

		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		delay := calculateBackoff(attempt-1, c.opts.InitialBackoff, c.opts.MaxBackoff)
		logger.Info("Reconnect scheduled", "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			c.stopRetrying()
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		if c.state != StateReconnecting {
			c.retrying = false
			c.mu.Unlock()

			return
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()

		metrics.Reconnects.Inc()

		ws, err := c.dial(ctx)
		if err == nil {
			c.finishOpen(ws)

			// The fresh socket may already have failed while the OnOpen
			// callbacks were running. transportFailed saw retrying still
			// set and spawned nothing, so this loop must carry on.
			c.mu.Lock()
			if c.state == StateReconnecting {
				c.mu.Unlock()
				continue
			}
			c.retrying = false
			c.mu.Unlock()

			logger.Info("Reconnected", "attempts", attempt)

			return
		}

		c.mu.Lock()
		c.lastErr = err
		if c.state == StateConnecting {
			c.setStateLocked(StateReconnecting)
		}
		giveUp := c.opts.MaxRetries > 0 && attempt >= c.opts.MaxRetries
		if giveUp {
			c.lastErr = ErrMaxRetriesExceeded
		}
		c.mu.Unlock()

		logger.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)

		if giveUp {
			logger.Error("Maximum reconnection attempts exceeded, giving up", "attempts", attempt)
			c.stopRetrying()
			c.Disconnect()

			return
		}
	}
}

// setStateLocked updates the state and the state gauge. Callers hold mu.
func (c *Conn) setStateLocked(s State) {
	c.state = s
	metrics.ConnectionState.Set(float64(s))
}

// addCallback appends to a callback list and returns a one-shot disposer.
func (c *Conn) addCallback(list *[]callback, fn func()) func() {
	c.cbMu.Lock()
	c.nextCBID++
	id := c.nextCBID
	*list = append(*list, callback{id: id, fn: fn})
	c.cbMu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			c.cbMu.Lock()
			defer c.cbMu.Unlock()

			l := *list
			for i, cb := range l {
				if cb.id == id {
					*list = append(l[:i:i], l[i+1:]...)
					break
				}
			}
		})
	}
}

// fire invokes a snapshot of a callback list in registration order.
// Callbacks may register or dispose callbacks without corrupting the pass.
func (c *Conn) fire(list *[]callback) {
	c.cbMu.Lock()
	snapshot := make([]callback, len(*list))
	copy(snapshot, *list)
	c.cbMu.Unlock()

	for _, cb := range snapshot {
		cb.fn()
	}
}
