package portaudio

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-session/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)
