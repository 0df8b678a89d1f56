package audio

import (
	"strings"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = EncodingLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: DefaultFormat}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}
	return 0
}

// BytesPerSecond returns the byte rate of the stream, or 0 when the format
// is unknown.
func (e EncodingInfo) BytesPerSecond() int {
	size := e.Format.ByteSize()
	if size <= 0 {
		return 0
	}
	return e.SampleRate * max(e.Channels, 1) * size
}

// Duration returns how long n bytes of audio play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	rate := e.BytesPerSecond()
	if rate == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// WithDefaults fills unset fields from the default encoding.
func (e EncodingInfo) WithDefaults() EncodingInfo {
	if e.SampleRate <= 0 {
		e.SampleRate = DefaultSampleRate
	}
	if e.Channels <= 0 {
		e.Channels = DefaultChannels
	}
	if e.Format.Name() == "" {
		e.Format = DefaultFormat
	}
	return e
}

// ParseEncoding maps the encoding names backends announce onto a format.
// Unknown names report false.
func ParseEncoding(name string) (encodingFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear16", "pcm16", "pcm_s16le", "s16le", "pcm":
		return EncodingLinear16, true
	case "mulaw", "mu-law", "ulaw", "pcm_mulaw":
		return EncodingMulaw, true
	case "alaw", "a-law", "pcm_alaw":
		return EncodingALaw, true
	}
	return "", false
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
