package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/transport"
)

const testTimeout = 2 * time.Second

type fakeTransport struct {
	mu      sync.Mutex
	conns   []*fakeConn
	opened  chan *fakeConn
	openErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{opened: make(chan *fakeConn, 32)}
}

func (t *fakeTransport) Open(_ context.Context, uri string, callbacks transport.Callbacks) (transport.Conn, error) {
	t.mu.Lock()
	openErr := t.openErr
	t.mu.Unlock()
	if openErr != nil {
		return nil, openErr
	}

	conn := &fakeConn{uri: uri, callbacks: callbacks.WithDefaults()}
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	t.opened <- conn
	return conn, nil
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *fakeTransport) waitOpen(tb testing.TB) *fakeConn {
	tb.Helper()
	select {
	case conn := <-t.opened:
		return conn
	case <-time.After(testTimeout):
		tb.Fatalf("timed out waiting for transport open")
	}
	return nil
}

type sentFrame struct {
	frameType transport.FrameType
	data      []byte
}

type fakeConn struct {
	uri       string
	callbacks transport.Callbacks

	mu          sync.Mutex
	sent        []sentFrame
	closed      bool
	closeReason string
}

func (c *fakeConn) SendBinary(data []byte) error {
	return c.record(transport.FrameBinary, data)
}

func (c *fakeConn) SendText(data []byte) error {
	return c.record(transport.FrameText, data)
}

func (c *fakeConn) record(frameType transport.FrameType, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	c.sent = append(c.sent, sentFrame{frameType: frameType, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) Close(_ int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeReason = reason
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentFrames() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.sent...)
}

func (c *fakeConn) open()               { c.callbacks.OnOpen() }
func (c *fakeConn) serverText(s string) { c.callbacks.OnMessage(transport.Frame{Type: transport.FrameText, Data: []byte(s)}) }
func (c *fakeConn) serverAudio(b []byte) {
	c.callbacks.OnMessage(transport.Frame{Type: transport.FrameBinary, Data: b})
}
func (c *fakeConn) drop(code int) { c.callbacks.OnClose(transport.CloseInfo{Code: code}) }
func (c *fakeConn) fail(err error) {
	c.callbacks.OnError(err)
	c.callbacks.OnClose(transport.CloseInfo{Code: transport.CloseAbnormalClosure, Reason: err.Error()})
}

type eventRecorder struct {
	events chan events.Event
}

func newEventRecorder(bus *events.Bus) *eventRecorder {
	r := &eventRecorder{events: make(chan events.Event, 256)}
	bus.SubscribeAll(func(event events.Event) {
		select {
		case r.events <- event:
		default:
		}
	})
	return r
}

func (r *eventRecorder) next(tb testing.TB) events.Event {
	tb.Helper()
	select {
	case event := <-r.events:
		return event
	case <-time.After(testTimeout):
		tb.Fatalf("timed out waiting for event")
	}
	return nil
}

// expectKinds reads len(kinds) events and fails on the first mismatch.
func (r *eventRecorder) expectKinds(tb testing.TB, kinds ...events.Kind) []events.Event {
	tb.Helper()
	got := make([]events.Event, 0, len(kinds))
	for i, kind := range kinds {
		event := r.next(tb)
		if event.Kind() != kind {
			tb.Fatalf("event %d: expected %s, got %s (%+v)", i, kind, event.Kind(), event)
		}
		got = append(got, event)
	}
	return got
}

func (r *eventRecorder) expectNone(tb testing.TB, wait time.Duration) {
	tb.Helper()
	select {
	case event := <-r.events:
		tb.Fatalf("expected no event, got %s (%+v)", event.Kind(), event)
	case <-time.After(wait):
	}
}

func newTestClient(t *testing.T, opts ...ClientOption) (*Client, *fakeTransport, *eventRecorder) {
	t.Helper()
	ft := newFakeTransport()
	bus := events.NewBus()
	rec := newEventRecorder(bus)
	c := NewClient(append([]ClientOption{WithTransport(ft), WithBus(bus)}, opts...)...)
	t.Cleanup(c.Close)
	return c, ft, rec
}

func testSession(t *testing.T) Session {
	t.Helper()
	s, err := NewSession("wss://backend.example/ws", "conv-1", "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
	return s
}

func connectAndOpen(t *testing.T, c *Client, ft *fakeTransport, rec *eventRecorder) *fakeConn {
	t.Helper()
	if err := c.Connect(testSession(t)); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	conn := ft.waitOpen(t)
	rec.expectKinds(t, events.KindConnectionConnecting)
	conn.open()
	rec.expectKinds(t, events.KindConnectionConnected)
	return conn
}

func chunk(speaker string, seq int, text string, final bool) string {
	data, _ := json.Marshal(map[string]any{
		"type":            "text_chunk",
		"speaker_id":      speaker,
		"sequence_number": seq,
		"text":            text,
		"is_final":        final,
	})
	return string(data)
}

var errDial = errors.New("dial refused")
