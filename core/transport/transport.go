// Package transport defines the raw bidirectional transport the session
// client runs on. Implementations carry frames; they hold no session logic.
package transport

import (
	"context"
	"errors"
)

var (
	ErrNotOpen = errors.New("transport not open")
	ErrClosed  = errors.New("transport closed")
)

// Transport opens connections.
type Transport interface {
	// Open starts connecting to uri and returns immediately. The outcome is
	// reported through callbacks: OnOpen once the connection is usable, or
	// OnError followed by OnClose when it fails. After OnOpen, OnMessage is
	// called for every inbound frame in arrival order and OnClose exactly
	// once when the connection ends. Callbacks are never called
	// concurrently for a single connection.
	Open(ctx context.Context, uri string, callbacks Callbacks) (Conn, error)
}

// Conn is one opened (or opening) connection. Its methods are safe for
// concurrent use.
type Conn interface {
	SendBinary(data []byte) error
	SendText(data []byte) error
	// Close closes the connection with a close code and reason. OnClose
	// reports the close as initiated locally.
	Close(code int, reason string) error
}

type FrameType int

const (
	FrameText FrameType = iota
	FrameBinary
)

func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	}
	return "unknown"
}

// Frame is one inbound transport unit.
type Frame struct {
	Type FrameType
	Data []byte
}

// CloseInfo describes how a connection ended. Local is true when Close was
// called on this side.
type CloseInfo struct {
	Code   int
	Reason string
	Local  bool
}

type Callbacks struct {
	OnOpen    func()
	OnMessage func(Frame)
	OnClose   func(CloseInfo)
	OnError   func(error)
}

// WithDefaults returns callbacks where every unset callback is a no-op.
func (c Callbacks) WithDefaults() Callbacks {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnMessage == nil {
		c.OnMessage = func(Frame) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(CloseInfo) {}
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	return c
}

const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseAbnormalClosure = 1006
)
