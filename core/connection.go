package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CloseError describes a connection the backend or the network ended.
type CloseError struct {
	Code   int
	Reason string
	// Err is the transport error reported before the close, if any.
	Err error
}

func (e *CloseError) Error() string {
	msg := fmt.Sprintf("connection closed with code %d", e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CloseError) Unwrap() error { return e.Err }

func (c *Client) handleConnect(requested Session) {
	c.sessionMu.RLock()
	sameSession := c.hasSession && c.requested.Equal(requested)
	hasSession := c.hasSession
	c.sessionMu.RUnlock()

	if sameSession {
		switch c.State() {
		case StateConnected, StateConnecting:
			return
		}
		c.stopReconnectTimer()
		c.backoff.reset()
		c.dial(0)
		return
	}

	if hasSession {
		c.teardown("session changed", true)
	}

	c.sessionMu.Lock()
	c.requested = requested
	c.session = requested.withConversationID()
	c.hasSession = true
	c.sessionMu.Unlock()

	c.backoff.reset()
	c.dial(0)
}

func (c *Client) handleDisconnect(reason string) {
	if c.State() == StateDisconnected {
		return
	}
	c.teardown(reason, false)
}

// dial starts a connection attempt. attempt is 0 for the first attempt and
// the retry number afterwards.
func (c *Client) dial(attempt int) {
	c.attemptID++
	id := c.attemptID
	c.lastErr = nil
	session := c.currentSession()

	c.setState(StateConnecting)
	c.publish(events.NewConnectionConnecting(session.ConversationID, attempt))

	uri, err := session.URI()
	if err != nil {
		c.fail(fmt.Errorf("failed to build connection uri: %w", err))
		return
	}

	ctx, span := tracer.Start(c.options.baseContext, "connect session", trace.WithAttributes(
		attribute.String("session.client_id", c.id),
		attribute.String("session.conversation_id", session.ConversationID),
		attribute.Int("session.attempt", attempt),
	))
	c.attemptSpan = span

	conn, err := c.options.transport.Open(ctx, uri, c.transportCallbacks(id))
	if err != nil {
		c.fail(fmt.Errorf("failed to open transport: %w", err))
		return
	}
	c.conn = conn
}

// transportCallbacks routes transport callbacks onto the event loop. Every
// callback carries the attempt it belongs to so late callbacks of a
// replaced connection are ignored.
func (c *Client) transportCallbacks(id uint64) transport.Callbacks {
	return transport.Callbacks{
		OnOpen: func() {
			c.loop.Post("transport open", func() { c.handleOpen(id) })
		},
		OnMessage: func(frame transport.Frame) {
			c.loop.Post("transport message", func() { c.handleFrame(id, frame) })
		},
		OnClose: func(info transport.CloseInfo) {
			c.loop.Post("transport close", func() { c.handleClose(id, info) })
		},
		OnError: func(err error) {
			c.loop.Post("transport error", func() { c.handleTransportError(id, err) })
		},
	}
}

func (c *Client) handleOpen(id uint64) {
	if id != c.attemptID || c.State() != StateConnecting {
		return
	}

	c.backoff.reset()
	c.endAttemptSpan(nil)
	c.sendConn.Store(&liveConn{Conn: c.conn})
	c.setState(StateConnected)
	c.publish(events.NewConnectionConnected(c.currentSession().ConversationID))
}

func (c *Client) handleTransportError(id uint64, err error) {
	if id != c.attemptID {
		return
	}

	c.lastErr = err
	logger.Warn("transport error",
		"client_id", c.id,
		"state", c.State().String(),
		"error", err)

	if c.State() == StateConnecting {
		c.fail(fmt.Errorf("connection attempt failed: %w", err))
	}
}

func (c *Client) handleClose(id uint64, info transport.CloseInfo) {
	if id != c.attemptID {
		return
	}

	cause := &CloseError{Code: info.Code, Reason: info.Reason, Err: c.lastErr}
	switch c.State() {
	case StateConnecting:
		c.fail(cause)
	case StateConnected:
		c.sendConn.Store(nil)
		c.publishAll(c.streams.Interrupt())
		c.cursor.Interrupt()
		c.fail(cause)
	}
}

// fail ends the current attempt and either schedules the next one or gives
// up once the reconnect ceiling is reached.
func (c *Client) fail(cause error) {
	c.sendConn.Store(nil)
	c.closeConn(transport.CloseNormal, "")
	c.endAttemptSpan(cause)

	conversationID := c.currentSession().ConversationID
	attempt, delay, ok := c.backoff.next()
	if !ok {
		logger.Error("giving up reconnecting",
			"client_id", c.id,
			"conversation_id", conversationID,
			"attempts", attempt,
			"error", cause)
		c.setState(StateFailed)
		c.publish(events.NewConnectionError(conversationID, cause, attempt, true))
		return
	}

	c.setState(StateReconnecting)
	c.instruments.reconnectScheduled(c.options.baseContext, attempt)
	c.publish(events.NewConnectionReconnecting(conversationID, attempt, delay, cause))

	id := c.attemptID
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.loop.Post("reconnect", func() { c.handleReconnect(id, attempt) })
	})
}

func (c *Client) handleReconnect(id uint64, attempt int) {
	if id != c.attemptID || c.State() != StateReconnecting {
		return
	}

	c.reconnectTimer = nil
	c.dial(attempt)
}

// teardown closes the connection without reconnecting. Open streams are
// completed as interrupted before the state changes.
func (c *Client) teardown(reason string, clearSession bool) {
	c.stopReconnectTimer()
	c.attemptID++
	c.sendConn.Store(nil)
	c.closeConn(transport.CloseNormal, reason)
	c.endAttemptSpan(errors.New("connection attempt abandoned"))
	c.backoff.reset()

	c.publishAll(c.streams.Interrupt())
	if clearSession {
		c.streams.Reset()
		c.cursor.Reset()
	} else {
		c.cursor.Interrupt()
	}

	if c.State() != StateDisconnected {
		c.setState(StateDisconnected)
		c.publish(events.NewConnectionDisconnected(c.currentSession().ConversationID, reason))
	}
}

func (c *Client) closeConn(code int, reason string) {
	if c.conn == nil {
		return
	}

	conn := c.conn
	c.conn = nil
	if err := conn.Close(code, reason); err != nil {
		logger.Warn("failed to close transport", "client_id", c.id, "error", err)
	}
}

func (c *Client) stopReconnectTimer() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) endAttemptSpan(err error) {
	if c.attemptSpan == nil {
		return
	}

	if err != nil {
		c.attemptSpan.RecordError(err)
		c.attemptSpan.SetStatus(codes.Error, err.Error())
	}
	c.attemptSpan.End()
	c.attemptSpan = nil
}

func (c *Client) setState(state ConnectionState) {
	previous := ConnectionState(c.state.Swap(int32(state)))
	logger.Info("connection state changed",
		"client_id", c.id,
		"conversation_id", c.currentSession().ConversationID,
		"from", previous.String(),
		"to", state.String())
}
