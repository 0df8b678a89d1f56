package events

// KindAudioFrame identifies an inbound audio frame.
const KindAudioFrame Kind = "audio.frame"

// AudioFrame carries one inbound audio frame. Sequence counts frames since
// the last interrupt or session start.
//
// Audio is passed through as received and is not copied. Receivers that
// retain it must not modify it.
type AudioFrame struct {
	Base
	Audio    []byte
	Sequence int64
}

// NewAudioFrame creates an audio frame event.
func NewAudioFrame(audio []byte, sequence int64) AudioFrame {
	return AudioFrame{Base: NewBase(KindAudioFrame), Audio: audio, Sequence: sequence}
}
