package main

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-session/cmd/voicechat"

var logger = otelslog.NewLogger(scopeName)
