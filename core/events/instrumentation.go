package events

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-session/core/events"

var logger = otelslog.NewLogger(scopeName)
