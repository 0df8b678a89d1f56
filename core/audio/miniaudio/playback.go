package miniaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-session/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	info         audio.EncodingInfo

	leftoverAudio []byte

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, info audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.audioContext = audioContext
	return c.initDevice(info)
}

func (c *playbackClient) initDevice(info audio.EncodingInfo) error {
	format, err := malgoFormat(info)
	if err != nil {
		return err
	}

	sampleRate := uint32(info.SampleRate)
	bytesPerFrame := malgo.SampleSizeInBytes(format) * info.Channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(info.Channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame, info.SilenceValue())},
	); err != nil {
		return err
	}

	c.info = info
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// Reinit swaps the device for one playing info. Queued audio is dropped,
// it was encoded for the old format.
func (c *playbackClient) Reinit(info audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil && c.info == info {
		return nil
	}

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.ClearBuffer()

	if err := c.initDevice(info); err != nil {
		return fmt.Errorf("failed to reinitialize playback device: %w", err)
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()

	if device == nil {
		return fmt.Errorf("device not initialized")
	} else if !device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
}

// Buffered returns how much queued audio is left to play.
func (c *playbackClient) Buffered() time.Duration {
	c.audioMu.Lock()
	n := len(c.leftoverAudio)
	c.audioMu.Unlock()

	return c.EncodingInfo().Duration(n)
}

func (c *playbackClient) EncodingInfo() audio.EncodingInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int, silence byte) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		n := copy(pOutput[:min(need, len(pOutput))], c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[n:]
		if len(c.leftoverAudio) == 0 {
			c.leftoverAudio = nil
		}
		c.audioMu.Unlock()

		for i := n; i < need && i < len(pOutput); i++ {
			pOutput[i] = silence
		}
	}
}

func malgoFormat(info audio.EncodingInfo) (malgo.FormatType, error) {
	switch info.Format {
	case audio.EncodingLinear16:
		return malgo.FormatS16, nil
	case audio.EncodingMulaw, audio.EncodingALaw:
		// TODO: Decode companded audio to S16 instead of rejecting it.
		return malgo.FormatUnknown, fmt.Errorf("unsupported playback encoding %q", info.Format.Name())
	}
	return malgo.FormatUnknown, fmt.Errorf("unknown playback encoding %q", info.Format.Name())
}
