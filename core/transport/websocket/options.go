package websocket

import (
	"net/http"
	"time"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultPongTimeout      = 60 * time.Second
	defaultCloseGrace       = time.Second
)

type Options struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// PingInterval is how often a ping is sent on an idle connection. Zero
	// disables keepalive pings and read deadlines.
	PingInterval time.Duration
	// PongTimeout is how long past a ping the connection may stay silent
	// before it is considered dead.
	PongTimeout time.Duration
	// CloseGrace is how long a local close waits for the peer's close frame
	// before the socket is dropped.
	CloseGrace time.Duration
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		HandshakeTimeout: defaultHandshakeTimeout,
		WriteTimeout:     defaultWriteTimeout,
		PingInterval:     defaultPingInterval,
		PongTimeout:      defaultPongTimeout,
		CloseGrace:       defaultCloseGrace,
	}
}

func WithHeader(header http.Header) Option {
	return func(o *Options) { o.Header = header.Clone() }
}

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.HandshakeTimeout = timeout
		}
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.WriteTimeout = timeout
		}
	}
}

// WithKeepAlive sets the ping interval and pong timeout. A zero interval
// disables keepalive.
func WithKeepAlive(interval, pongTimeout time.Duration) Option {
	return func(o *Options) {
		o.PingInterval = interval
		if pongTimeout > 0 {
			o.PongTimeout = pongTimeout
		}
	}
}

func WithCloseGrace(grace time.Duration) Option {
	return func(o *Options) {
		if grace > 0 {
			o.CloseGrace = grace
		}
	}
}
