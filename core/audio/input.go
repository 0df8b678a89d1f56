package audio

import (
	"context"
	"errors"
	"fmt"
)

// Input captures microphone audio. onAudio may be handed a buffer the
// input reuses.
type Input interface {
	EncodingInfo() EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// Sender is the part of a session client captured audio is sent through.
type Sender interface {
	SendAudioChunk(audio []byte) error
}

// Forward returns a capture callback that copies every buffer and sends it.
// Send errors matching one of ignore are dropped silently, others go to
// onErr.
func Forward(sender Sender, onErr func(error), ignore ...error) func(audio []byte) {
	return func(audio []byte) {
		if len(audio) == 0 {
			return
		}

		chunk := make([]byte, len(audio))
		copy(chunk, audio)
		if err := sender.SendAudioChunk(chunk); err != nil {
			for _, ignored := range ignore {
				if errors.Is(err, ignored) {
					return
				}
			}
			if onErr != nil {
				onErr(fmt.Errorf("failed to forward captured audio: %w", err))
			}
		}
	}
}
