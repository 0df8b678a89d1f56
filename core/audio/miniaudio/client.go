// Package miniaudio plays and captures audio through miniaudio (malgo).
package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-session/core/audio"
)

type Client struct {
	// audioContext is only kept to uninitialize it, it is an ownership
	// thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient

	closeOnce sync.Once
}

var (
	_ audio.Output         = (*Client)(nil)
	_ audio.Reconfigurable = (*Client)(nil)
	_ audio.Input          = (*Client)(nil)
)

// NewClient opens the default playback and capture devices. playback is
// the initial output encoding; the capture device always records linear16
// at capture's sample rate.
func NewClient(playback, capture audio.EncodingInfo) (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx, playback.WithDefaults()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, capture.WithDefaults()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

// Configure reopens the playback device with a new encoding.
func (c *Client) Configure(info audio.EncodingInfo) error {
	return c.playbackClient.Reinit(info.WithDefaults())
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.playbackClient.EncodingInfo()
}

func (c *Client) CaptureEncodingInfo() audio.EncodingInfo {
	return c.captureClient.EncodingInfo()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		err := errors.Join(c.captureClient.Uninit(), c.playbackClient.Uninit())
		if err != nil {
			logger.Warn("failed to release audio devices", "error", err)
		}
		if c.audioContext != nil {
			_ = c.audioContext.Uninit()
			c.audioContext.Free()
		}
	})
}
