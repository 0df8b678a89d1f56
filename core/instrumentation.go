package session

import (
	"context"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-session/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type instruments struct {
	framesReceived     metric.Int64Counter
	reconnectAttempts  metric.Int64Counter
	responsesCompleted metric.Int64Counter
}

func newInstruments() instruments {
	var i instruments
	var err error
	if i.framesReceived, err = meter.Int64Counter("session.frames.received",
		metric.WithDescription("Inbound frames by kind"),
		metric.WithUnit("{frame}"),
	); err != nil {
		logger.Warn("failed to create counter", "name", "session.frames.received", "error", err)
	}
	if i.reconnectAttempts, err = meter.Int64Counter("session.reconnect.attempts",
		metric.WithDescription("Scheduled reconnect attempts"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		logger.Warn("failed to create counter", "name", "session.reconnect.attempts", "error", err)
	}
	if i.responsesCompleted, err = meter.Int64Counter("session.responses.completed",
		metric.WithDescription("Completed response streams"),
		metric.WithUnit("{response}"),
	); err != nil {
		logger.Warn("failed to create counter", "name", "session.responses.completed", "error", err)
	}
	return i
}

func (i instruments) frameReceived(ctx context.Context, kind string) {
	if i.framesReceived != nil {
		i.framesReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("frame.kind", kind)))
	}
}

func (i instruments) reconnectScheduled(ctx context.Context, attempt int) {
	if i.reconnectAttempts != nil {
		i.reconnectAttempts.Add(ctx, 1, metric.WithAttributes(attribute.Int("session.attempt", attempt)))
	}
}

func (i instruments) responseCompleted(ctx context.Context, interrupted bool) {
	if i.responsesCompleted != nil {
		i.responsesCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("response.interrupted", interrupted)))
	}
}
