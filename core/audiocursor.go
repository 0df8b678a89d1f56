package session

import (
	"sync"

	"github.com/koscakluka/ema-session/core/events"
)

// AudioCursor tracks inbound audio. Frames are delivered in arrival order,
// never reordered.
type AudioCursor struct {
	// ExpectedSequence is the sequence the next frame will carry.
	ExpectedSequence int64
	Playing          bool
	FramesDelivered  int64
}

type audioCursor struct {
	mu     sync.Mutex
	cursor AudioCursor
}

func (c *audioCursor) Deliver(audio []byte) events.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := events.NewAudioFrame(audio, c.cursor.ExpectedSequence)
	c.cursor.ExpectedSequence++
	c.cursor.FramesDelivered++
	c.cursor.Playing = true
	return frame
}

// Interrupt stops playback. Sequence numbering restarts with the next frame.
func (c *audioCursor) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cursor.Playing = false
	c.cursor.ExpectedSequence = 0
}

func (c *audioCursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cursor = AudioCursor{}
}

func (c *audioCursor) Snapshot() AudioCursor {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cursor
}
