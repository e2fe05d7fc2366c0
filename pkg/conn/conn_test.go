package conn

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/metrics"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

// testServer is a minimal in-test endpoint: it records every inbound
// frame, answers pings with pongs, and lets the test push frames or
// drop the live socket to exercise the reconnect path.
type testServer struct {
	t   *testing.T
	srv *httptest.Server

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames []*wire.Frame
	tokens []string

	// noPong swallows client pings; dropNext closes that many accepted
	// sockets immediately after the handshake.
	noPong   atomic.Bool
	dropNext atomic.Int32

	connected chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		t:         t,
		connected: make(chan struct{}, 16),
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ts.mu.Lock()
		ts.conns = append(ts.conns, ws)
		ts.tokens = append(ts.tokens, r.URL.Query().Get("token"))
		ts.mu.Unlock()

		ts.connected <- struct{}{}

		if n := ts.dropNext.Load(); n > 0 && ts.dropNext.CompareAndSwap(n, n-1) {
			ws.Close()
			return
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}

			f, err := wire.Decode(data)
			if err != nil {
				continue
			}

			ts.mu.Lock()
			ts.frames = append(ts.frames, f)
			ts.mu.Unlock()

			if f.Type == wire.TypePing && !ts.noPong.Load() {
				pong, _ := wire.NewPong().Encode()
				//nolint:errcheck // Test server, read loop handles failures
				ws.WriteMessage(websocket.TextMessage, pong)
			}
		}
	}))

	t.Cleanup(ts.srv.Close)

	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

// push writes one frame to the most recently accepted socket.
func (ts *testServer) push(f *wire.Frame) {
	ts.mu.Lock()
	ws := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()

	data, err := f.Encode()
	if err != nil {
		ts.t.Fatalf("failed to encode frame: %v", err)
	}

	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		ts.t.Fatalf("failed to write frame: %v", err)
	}
}

// drop closes the most recently accepted socket from the server side.
func (ts *testServer) drop() {
	ts.mu.Lock()
	ws := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()

	ws.Close()
}

// framesOfType returns recorded inbound frames matching a type.
func (ts *testServer) framesOfType(typ wire.MessageType) []*wire.Frame {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	var out []*wire.Frame
	for _, f := range ts.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}

	return out
}

func (ts *testServer) waitConnected(t *testing.T) {
	t.Helper()

	select {
	case <-ts.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to accept a connection")
	}
}

// waitFor polls a condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

func testOptions(url string) Options {
	return Options{
		URL:            url,
		DialTimeout:    time.Second,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}
}

func TestConnectAndSend(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	if c.State() != StateOpen {
		t.Errorf("expected state open, got %s", c.State())
	}

	if !c.Send(wire.NewFrame(wire.TypeNotification, "school:1:alerts", map[string]interface{}{"text": "hi"})) {
		t.Error("expected Send to succeed while open")
	}

	waitFor(t, "server to receive the frame", func() bool {
		return len(ts.framesOfType(wire.TypeNotification)) == 1
	})
}

func TestConnectWhenAlreadyConnected(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	if err := c.Connect(); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestSendWhenClosed(t *testing.T) {
	c, err := New(testOptions("ws://localhost:1/socket"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Send(wire.NewPing()) {
		t.Error("expected Send to fail while closed")
	}
}

func TestInboundFramesReachHandler(t *testing.T) {
	ts := newTestServer(t)

	var mu sync.Mutex
	var got []*wire.Frame

	c, err := New(testOptions(ts.url()), func(f *wire.Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	f := wire.NewFrame(wire.TypeGradeUpdate, "school:1:grades", map[string]interface{}{"grade": "B"})
	f.Seq = 4
	ts.push(f)

	waitFor(t, "handler to receive the frame", func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == 1 && got[0].Seq == 4
	})
}

func TestServerPingIsAnswered(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	ts.push(wire.NewPing())

	waitFor(t, "client to answer with pong", func() bool {
		return len(ts.framesOfType(wire.TypePong)) == 1
	})
}

func TestReconnectAfterServerDrop(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var opens, closes atomic.Int32
	c.OnOpen(func() { opens.Add(1) })
	c.OnClosed(func() { closes.Add(1) })

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	ts.drop()

	// The client must dial again on its own and fire OnOpen a second time.
	ts.waitConnected(t)

	waitFor(t, "second OnOpen", func() bool { return opens.Load() == 2 })

	if closes.Load() != 1 {
		t.Errorf("expected 1 OnClosed, got %d", closes.Load())
	}

	if c.State() != StateOpen {
		t.Errorf("expected state open after reconnect, got %s", c.State())
	}

	if c.Attempt() != 0 {
		t.Errorf("expected attempt counter reset after reconnect, got %d", c.Attempt())
	}
}

func TestTransportFailureDuringOpenCallback(t *testing.T) {
	ts := newTestServer(t)

	// Kill the first two sockets the moment they are accepted, so each
	// failure lands while the OnOpen callback below is still running.
	ts.dropNext.Store(2)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var opens atomic.Int32
	c.OnOpen(func() {
		opens.Add(1)
		time.Sleep(50 * time.Millisecond)
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	// The retry loop must survive a socket that dies mid-callback and
	// keep dialing until the third, healthy socket is up.
	waitFor(t, "connection to settle open", func() bool {
		return c.State() == StateOpen
	})

	if opens.Load() != 3 {
		t.Errorf("expected 3 opens, got %d", opens.Load())
	}
}

func TestHeartbeatTimeoutForcesReconnect(t *testing.T) {
	ts := newTestServer(t)

	// Swallow pings so no pong ever refreshes the deadline.
	ts.noPong.Store(true)

	opts := testOptions(ts.url())
	opts.HeartbeatInterval = 20 * time.Millisecond
	opts.HeartbeatTimeout = 50 * time.Millisecond

	c, err := New(opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var opens atomic.Int32
	c.OnOpen(func() { opens.Add(1) })

	before := testutil.ToFloat64(metrics.HeartbeatTimeouts)

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	// The missed pong tears the socket down and drives a redial.
	waitFor(t, "redial after missed pong", func() bool {
		return opens.Load() >= 2
	})

	if testutil.ToFloat64(metrics.HeartbeatTimeouts) <= before {
		t.Error("expected heartbeat timeout counter to increase")
	}

	if len(ts.framesOfType(wire.TypePing)) == 0 {
		t.Error("expected at least one ping on the wire")
	}
}

func TestInitialDialFailureRetriesInBackground(t *testing.T) {
	// Nothing listens here; the first dial fails fast.
	opts := testOptions("ws://127.0.0.1:1/socket")
	opts.DialTimeout = 100 * time.Millisecond

	c, err := New(opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if err := c.Connect(); err == nil {
		t.Fatal("expected connect error for unreachable server")
	}

	// The machine keeps retrying rather than collapsing to closed.
	if s := c.State(); s != StateReconnecting && s != StateConnecting {
		t.Errorf("expected reconnecting or connecting, got %s", s)
	}
}

func TestMaxRetriesGivesUp(t *testing.T) {
	opts := testOptions("ws://127.0.0.1:1/socket")
	opts.DialTimeout = 100 * time.Millisecond
	opts.MaxRetries = 2

	c, err := New(opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if err := c.Connect(); err == nil {
		t.Fatal("expected connect error for unreachable server")
	}

	waitFor(t, "retry budget to be spent", func() bool {
		return c.State() == StateClosed
	})

	if !errors.Is(c.LastError(), ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", c.LastError())
	}
}

func TestDisconnectFiresOnClosedOnce(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var closes atomic.Int32
	c.OnClosed(func() { closes.Add(1) })

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	ts.waitConnected(t)

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	// A second disconnect is a no-op.
	if err := c.Disconnect(); err != nil {
		t.Fatalf("unexpected disconnect error: %v", err)
	}

	if closes.Load() != 1 {
		t.Errorf("expected exactly 1 OnClosed, got %d", closes.Load())
	}

	if c.State() != StateClosed {
		t.Errorf("expected state closed, got %s", c.State())
	}
}

func TestCallbackDisposer(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(testOptions(ts.url()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var kept, disposed atomic.Int32
	c.OnOpen(func() { kept.Add(1) })
	dispose := c.OnOpen(func() { disposed.Add(1) })

	dispose()
	dispose() // double dispose must be safe

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	waitFor(t, "surviving callback", func() bool { return kept.Load() == 1 })

	if disposed.Load() != 0 {
		t.Errorf("expected disposed callback to never fire, got %d", disposed.Load())
	}
}

func TestDialURLAttachesToken(t *testing.T) {
	ts := newTestServer(t)

	opts := testOptions(ts.url())
	opts.Token = "tok-123"

	c, err := New(opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer c.Close()

	ts.waitConnected(t)

	ts.mu.Lock()
	token := ts.tokens[0]
	ts.mu.Unlock()

	if token != "tok-123" {
		t.Errorf("expected token query parameter tok-123, got %q", token)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateConnecting, "connecting"},
		{StateOpen, "open"},
		{StateReconnecting, "reconnecting"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
