package events

import "time"

const (
	// KindConnectionConnecting identifies the start of a connection attempt.
	KindConnectionConnecting Kind = "connection.connecting"
	// KindConnectionConnected identifies an opened transport.
	KindConnectionConnected Kind = "connection.connected"
	// KindConnectionDisconnected identifies a requested, final close.
	KindConnectionDisconnected Kind = "connection.disconnected"
	// KindConnectionReconnecting identifies a scheduled reconnect attempt.
	KindConnectionReconnecting Kind = "connection.reconnecting"
	// KindConnectionError identifies a persistent connection failure.
	KindConnectionError Kind = "connection.error"
)

// ConnectionConnecting marks the start of a connection attempt. Attempt is 0
// for the first attempt after Connect and counts retries afterwards.
type ConnectionConnecting struct {
	Base
	ConversationID string
	Attempt        int
}

// NewConnectionConnecting creates a connecting event.
func NewConnectionConnecting(conversationID string, attempt int) ConnectionConnecting {
	return ConnectionConnecting{Base: NewBase(KindConnectionConnecting), ConversationID: conversationID, Attempt: attempt}
}

// ConnectionConnected marks an opened transport.
type ConnectionConnected struct {
	Base
	ConversationID string
}

// NewConnectionConnected creates a connected event.
func NewConnectionConnected(conversationID string) ConnectionConnected {
	return ConnectionConnected{Base: NewBase(KindConnectionConnected), ConversationID: conversationID}
}

// ConnectionDisconnected marks a requested close.
type ConnectionDisconnected struct {
	Base
	ConversationID string
	Reason         string
}

// NewConnectionDisconnected creates a disconnected event.
func NewConnectionDisconnected(conversationID, reason string) ConnectionDisconnected {
	return ConnectionDisconnected{Base: NewBase(KindConnectionDisconnected), ConversationID: conversationID, Reason: reason}
}

// ConnectionReconnecting marks a scheduled reconnect.
type ConnectionReconnecting struct {
	Base
	ConversationID string
	Attempt        int
	Delay          time.Duration
	Cause          error
}

// NewConnectionReconnecting creates a reconnecting event.
func NewConnectionReconnecting(conversationID string, attempt int, delay time.Duration, cause error) ConnectionReconnecting {
	return ConnectionReconnecting{
		Base:           NewBase(KindConnectionReconnecting),
		ConversationID: conversationID,
		Attempt:        attempt,
		Delay:          delay,
		Cause:          cause,
	}
}

// ConnectionError marks a connection failure. Persistent errors mean no
// further attempts will be made automatically.
type ConnectionError struct {
	Base
	ConversationID string
	Cause          error
	Attempts       int
	Persistent     bool
}

// NewConnectionError creates a connection error event.
func NewConnectionError(conversationID string, cause error, attempts int, persistent bool) ConnectionError {
	return ConnectionError{
		Base:           NewBase(KindConnectionError),
		ConversationID: conversationID,
		Cause:          cause,
		Attempts:       attempts,
		Persistent:     persistent,
	}
}
