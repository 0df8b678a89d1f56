// Package config loads the voicechat client configuration from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-session/core/protocol"
)

const (
	AudioBackendMiniaudio = "miniaudio"
	AudioBackendPortaudio = "portaudio"
	AudioBackendNone      = "none"
)

type Config struct {
	SessionURL     string   `env:"EMA_SESSION_URL" envDefault:"ws://localhost:8080/ws"`
	ConversationID string   `env:"EMA_CONVERSATION_ID"`
	SpeakerIDs     []string `env:"EMA_SPEAKER_IDS" envSeparator:","`
	Model          string   `env:"EMA_MODEL"`

	MaxReconnectAttempts int           `env:"EMA_MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectBaseDelay   time.Duration `env:"EMA_RECONNECT_BASE_DELAY" envDefault:"500ms"`
	ReconnectMaxDelay    time.Duration `env:"EMA_RECONNECT_MAX_DELAY" envDefault:"30s"`

	AudioBackend    string `env:"EMA_AUDIO_BACKEND" envDefault:"miniaudio"`
	AudioSampleRate int    `env:"EMA_AUDIO_SAMPLE_RATE" envDefault:"16000"`

	TranscriptDB string `env:"EMA_TRANSCRIPT_DB"`

	Telemetry  Telemetry
	Parameters Parameters
}

type Telemetry struct {
	Endpoint string `env:"EMA_OTEL_ENDPOINT"`
	Enabled  bool   `env:"EMA_OTEL_ENABLED" envDefault:"true"`
}

// Parameters are default model parameters as typed in the environment.
// Blank or non-numeric values are left out.
type Parameters struct {
	Temperature       string `env:"EMA_TEMPERATURE"`
	TopP              string `env:"EMA_TOP_P"`
	MinP              string `env:"EMA_MIN_P"`
	TopK              string `env:"EMA_TOP_K"`
	FrequencyPenalty  string `env:"EMA_FREQUENCY_PENALTY"`
	PresencePenalty   string `env:"EMA_PRESENCE_PENALTY"`
	RepetitionPenalty string `env:"EMA_REPETITION_PENALTY"`
}

func (p Parameters) ModelParameters() protocol.ModelParameters {
	params, _ := protocol.ParseModelParameters(map[string]string{
		protocol.ParamTemperature:       p.Temperature,
		protocol.ParamTopP:              p.TopP,
		protocol.ParamMinP:              p.MinP,
		protocol.ParamTopK:              p.TopK,
		protocol.ParamFrequencyPenalty:  p.FrequencyPenalty,
		protocol.ParamPresencePenalty:   p.PresencePenalty,
		protocol.ParamRepetitionPenalty: p.RepetitionPenalty,
	})
	return params
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given .env files, or ./.env when none are given, and then
// parses the environment. Variables already set win over file values. A
// missing default .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.AudioBackend = strings.ToLower(strings.TrimSpace(c.AudioBackend))
	switch c.AudioBackend {
	case AudioBackendMiniaudio, AudioBackendPortaudio, AudioBackendNone:
	case "":
		c.AudioBackend = AudioBackendMiniaudio
	default:
		return fmt.Errorf("invalid EMA_AUDIO_BACKEND %q", c.AudioBackend)
	}

	if strings.TrimSpace(c.SessionURL) == "" {
		return errors.New("EMA_SESSION_URL is required")
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("invalid EMA_AUDIO_SAMPLE_RATE %d", c.AudioSampleRate)
	}
	if c.ReconnectBaseDelay <= 0 || c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return fmt.Errorf("invalid reconnect delays %s..%s", c.ReconnectBaseDelay, c.ReconnectMaxDelay)
	}
	return nil
}
