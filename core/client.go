// Package session keeps one realtime connection to a voice/chat backend and
// turns the frames arriving on it into typed events.
//
// A Client owns the connection lifecycle (connect, disconnect, reconnect
// with backoff), splits inbound frames into audio and control messages,
// reassembles streamed text per speaker and publishes everything on an
// events.Bus. Presentation code subscribes to the bus and talks back through
// the Send methods.
package session

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/transport"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrEmptyContent = errors.New("message content is empty")
	ErrEmptyAudio   = errors.New("audio chunk is empty")
	ErrClientClosed = errors.New("client closed")
)

type Client struct {
	id          string
	options     clientOptions
	bus         *events.Bus
	loop        *eventLoop
	instruments instruments

	state    atomic.Int32
	sendConn atomic.Pointer[liveConn]
	closed   atomic.Bool

	closeOnce sync.Once

	sessionMu  sync.RWMutex
	requested  Session
	session    Session
	hasSession bool

	// Owned by the event loop.
	attemptID      uint64
	conn           transport.Conn
	attemptSpan    trace.Span
	lastErr        error
	backoff        *reconnectBackoff
	reconnectTimer *time.Timer

	streams *reassembler
	cursor  audioCursor
}

type liveConn struct {
	transport.Conn
}

func NewClient(opts ...ClientOption) *Client {
	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.withDefaults()

	c := &Client{
		id:          uuid.NewString(),
		options:     options,
		bus:         options.bus,
		loop:        newEventLoop(),
		instruments: newInstruments(),
		backoff:     newReconnectBackoff(options.backoff),
		streams:     newReassembler(options.completedHistory),
	}
	c.state.Store(int32(StateDisconnected))
	c.loop.Start()

	return c
}

// ID identifies the client instance in logs and traces.
func (c *Client) ID() string { return c.id }

func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Session returns the session the client is connected, or last connected,
// to.
func (c *Client) Session() (Session, bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()

	session := c.session
	session.SpeakerIDs = slices.Clone(session.SpeakerIDs)
	return session, c.hasSession
}

func (c *Client) Bus() *events.Bus { return c.bus }

func (c *Client) Subscribe(kind events.Kind, handler events.Handler) events.Subscription {
	return c.bus.Subscribe(kind, handler)
}

func (c *Client) SubscribeAll(handler events.Handler) events.Subscription {
	return c.bus.SubscribeAll(handler)
}

func (c *Client) Unsubscribe(sub events.Subscription) bool {
	return c.bus.Unsubscribe(sub)
}

// Connect starts connecting to s and returns once the attempt is scheduled.
// Progress is reported on the bus. Connecting to the session the client is
// already connected or connecting to does nothing; connecting to another
// session tears the current one down first.
func (c *Client) Connect(s Session) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	requested, err := s.normalized()
	if err != nil {
		return err
	}

	if !c.loop.Post("connect", func() { c.handleConnect(requested) }) {
		return ErrClientClosed
	}
	return nil
}

// Disconnect closes the connection and stops reconnecting. It returns once
// the close is scheduled.
func (c *Client) Disconnect(reason string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	if !c.loop.Post("disconnect", func() { c.handleDisconnect(reason) }) {
		return ErrClientClosed
	}
	return nil
}

// Close disconnects and stops the client for good. It waits for the event
// loop to finish and must not be called from an event handler.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.loop.Post("close", func() {
			c.teardown("client closed", true)
			c.loop.Stop()
		}) {
			c.loop.AwaitDone()
		}
	})
}

// Snapshot is a point-in-time copy of the client state.
type Snapshot struct {
	ClientID         string
	State            ConnectionState
	Session          Session
	HasSession       bool
	OpenStreams      []ResponseStream
	CompletedStreams []ResponseStream
	Audio            AudioCursor
}

func (c *Client) Snapshot() Snapshot {
	session, hasSession := c.Session()
	return Snapshot{
		ClientID:         c.id,
		State:            c.State(),
		Session:          session,
		HasSession:       hasSession,
		OpenStreams:      c.streams.Open(),
		CompletedStreams: c.streams.Completed(),
		Audio:            c.cursor.Snapshot(),
	}
}

func (c *Client) currentSession() Session {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session
}

func (c *Client) publish(event events.Event) {
	if completed, ok := event.(events.ResponseCompleted); ok {
		c.instruments.responseCompleted(c.options.baseContext, completed.Interrupted)
	}
	c.bus.Publish(event)
}

func (c *Client) publishAll(emitted []events.Event) {
	for _, event := range emitted {
		c.publish(event)
	}
}
