package session

import (
	"context"
	"time"

	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
	"github.com/koscakluka/ema-session/core/transport"
	"github.com/koscakluka/ema-session/core/transport/websocket"
)

type ClientOption func(*clientOptions)

type clientOptions struct {
	transport         transport.Transport
	bus               *events.Bus
	backoff           BackoffPolicy
	defaultModel      string
	defaultParameters protocol.ModelParameters
	baseContext       context.Context
	completedHistory  int
}

const defaultCompletedHistory = 64

func defaultClientOptions() clientOptions {
	return clientOptions{
		backoff:          DefaultBackoffPolicy(),
		baseContext:      context.Background(),
		completedHistory: defaultCompletedHistory,
	}
}

// WithTransport sets the transport connections are opened with. The default
// is a websocket transport.
func WithTransport(t transport.Transport) ClientOption {
	return func(o *clientOptions) { o.transport = t }
}

// WithBus publishes client events on an existing bus instead of a new one.
func WithBus(bus *events.Bus) ClientOption {
	return func(o *clientOptions) { o.bus = bus }
}

func WithBackoff(policy BackoffPolicy) ClientOption {
	return func(o *clientOptions) { o.backoff = policy }
}

func WithReconnectDelay(base, maximum time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.backoff.BaseDelay = base
		o.backoff.MaxDelay = maximum
	}
}

// WithMaxReconnectAttempts sets the reconnect ceiling. Zero or less retries
// forever.
func WithMaxReconnectAttempts(attempts int) ClientOption {
	return func(o *clientOptions) { o.backoff.MaxAttempts = attempts }
}

// WithDefaultModel sets the model sent with user messages that do not name
// one.
func WithDefaultModel(model string) ClientOption {
	return func(o *clientOptions) { o.defaultModel = model }
}

// WithDefaultParameters sets model parameters sent with every user message.
// Parameters passed to SendUserMessage take precedence.
func WithDefaultParameters(params protocol.ModelParameters) ClientOption {
	return func(o *clientOptions) { o.defaultParameters = params.Sanitized() }
}

// WithBaseContext sets the context connection attempts are derived from.
func WithBaseContext(ctx context.Context) ClientOption {
	return func(o *clientOptions) {
		if ctx != nil {
			o.baseContext = ctx
		}
	}
}

// WithCompletedHistory sets how many completed streams are kept for
// snapshots.
func WithCompletedHistory(n int) ClientOption {
	return func(o *clientOptions) {
		if n >= 0 {
			o.completedHistory = n
		}
	}
}

func (o *clientOptions) withDefaults() {
	if o.transport == nil {
		o.transport = websocket.New()
	}
	if o.bus == nil {
		o.bus = events.NewBus()
	}
	if o.baseContext == nil {
		o.baseContext = context.Background()
	}
}

type MessageOption func(*protocol.UserMessage)

// WithModel overrides the client's default model for one message.
func WithModel(model string) MessageOption {
	return func(m *protocol.UserMessage) { m.Model = model }
}
