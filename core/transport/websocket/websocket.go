// Package websocket implements transport.Transport on top of
// gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-session/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var _ transport.Transport = (*Transport)(nil)

type Transport struct {
	dialer  *gorilla.Dialer
	options Options
}

func New(opts ...Option) *Transport {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Transport{
		dialer: &gorilla.Dialer{
			Proxy:            gorilla.DefaultDialer.Proxy,
			HandshakeTimeout: options.HandshakeTimeout,
		},
		options: options,
	}
}

func (t *Transport) Open(ctx context.Context, uri string, callbacks transport.Callbacks) (transport.Conn, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	if scheme := strings.ToLower(parsed.Scheme); scheme != "ws" && scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket url: unsupported scheme %q", parsed.Scheme)
	}

	c := &conn{
		dialer:    t.dialer,
		options:   t.options,
		callbacks: callbacks.WithDefaults(),
		done:      make(chan struct{}),
	}
	go c.run(ctx, parsed.String())

	return c, nil
}

type conn struct {
	dialer    *gorilla.Dialer
	options   Options
	callbacks transport.Callbacks

	mu          sync.Mutex
	ws          *gorilla.Conn
	cancelDial  context.CancelFunc
	closing     bool
	ended       bool
	localCode   int
	localReason string

	writeMu sync.Mutex
	done    chan struct{}
}

func (c *conn) run(ctx context.Context, uri string) {
	defer close(c.done)

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		c.end(nil)
		return
	}
	c.cancelDial = cancel
	c.mu.Unlock()

	dialCtx, span := tracer.Start(dialCtx, "dial websocket")
	span.SetAttributes(attribute.String("websocket.host", hostOf(uri)))
	ws, _, err := c.dialer.DialContext(dialCtx, uri, c.options.Header)
	if err != nil {
		err = fmt.Errorf("failed to open socket connection: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.end(err)
		return
	}
	span.End()

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = ws.Close() // Ignored on purpose, the close was requested while dialing
		c.end(nil)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	if c.options.PingInterval > 0 {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(c.readDeadline())
		})
	}

	c.callbacks.OnOpen()

	keepAliveCtx, stopKeepAlive := context.WithCancel(ctx)
	if c.options.PingInterval > 0 {
		go c.keepAlive(keepAliveCtx, ws)
	}

	err = c.readMessages(ws)
	stopKeepAlive()
	_ = ws.Close() // Ignored on purpose, the read loop already failed
	c.end(err)
}

func (c *conn) readMessages(ws *gorilla.Conn) error {
	for {
		if c.options.PingInterval > 0 {
			if err := ws.SetReadDeadline(c.readDeadline()); err != nil {
				return fmt.Errorf("failed to set read deadline: %w", err)
			}
		}

		msgType, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		switch msgType {
		case gorilla.BinaryMessage:
			c.callbacks.OnMessage(transport.Frame{Type: transport.FrameBinary, Data: msg})
		case gorilla.TextMessage:
			c.callbacks.OnMessage(transport.Frame{Type: transport.FrameText, Data: msg})
		}
	}
}

// end reports the final outcome of the connection. err is the dial or read
// error, nil when the connection never started.
func (c *conn) end(err error) {
	c.mu.Lock()
	c.ended = true
	local := c.closing
	info := transport.CloseInfo{Code: c.localCode, Reason: c.localReason, Local: local}
	c.mu.Unlock()

	if !local {
		info = transport.CloseInfo{Code: transport.CloseAbnormalClosure}
		var closeErr *gorilla.CloseError
		if errors.As(err, &closeErr) {
			info.Code = closeErr.Code
			info.Reason = closeErr.Text
		} else if err != nil {
			info.Reason = err.Error()
		}

		if !gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
			c.callbacks.OnError(err)
		}
	}

	c.callbacks.OnClose(info)
}

func (c *conn) readDeadline() time.Time {
	return time.Now().Add(c.options.PingInterval + c.options.PongTimeout)
}

func (c *conn) keepAlive(ctx context.Context, ws *gorilla.Conn) {
	ticker := time.NewTicker(c.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(gorilla.PingMessage, nil, time.Now().Add(c.options.WriteTimeout)); err != nil {
				logger.Warn("failed to send websocket ping", "error", err)
				return
			}
		}
	}
}

func (c *conn) SendBinary(data []byte) error {
	return c.write(gorilla.BinaryMessage, data)
}

func (c *conn) SendText(data []byte) error {
	return c.write(gorilla.TextMessage, data)
}

func (c *conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	ws, closing, ended := c.ws, c.closing, c.ended
	c.mu.Unlock()

	if closing || ended {
		return transport.ErrClosed
	} else if ws == nil {
		return transport.ErrNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ws.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := ws.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (c *conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closing || c.ended {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.localCode = code
	c.localReason = reason
	ws := c.ws
	cancelDial := c.cancelDial
	c.mu.Unlock()

	if ws == nil {
		if cancelDial != nil {
			cancelDial()
		}
		return nil
	}

	msg := gorilla.FormatCloseMessage(code, reason)
	if err := ws.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(c.options.WriteTimeout)); err != nil {
		if aggressiveCloseErr := ws.Close(); aggressiveCloseErr != nil {
			return fmt.Errorf("failed to close websocket: %w", errors.Join(err, aggressiveCloseErr))
		}
		return nil
	}

	// The read loop ends once the peer echoes the close frame; drop the
	// socket if it never does.
	go func() {
		select {
		case <-c.done:
		case <-time.After(c.options.CloseGrace):
			_ = ws.Close()
		}
	}()
	return nil
}

func hostOf(uri string) string {
	if parsed, err := url.Parse(uri); err == nil {
		return parsed.Host
	}
	return ""
}
