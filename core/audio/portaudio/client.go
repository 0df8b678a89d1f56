// Package portaudio plays and captures linear16 audio through PortAudio.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-session/core/audio"
)

const defaultBufferSize = 1024

var errClosed = errors.New("portaudio client closed")

// Client owns one full-duplex default stream. Playback is written from a
// background goroutine so SendAudio never waits on the device.
type Client struct {
	bufferSize int
	sampleRate int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	mu            sync.Mutex
	leftoverAudio []byte
	signal        chan struct{}

	captureMu     sync.Mutex
	cancelCapture context.CancelFunc
	captureDone   chan struct{}

	closeOnce sync.Once
	closeCh   chan struct{}
	writerWg  sync.WaitGroup
}

var (
	_ audio.Output = (*Client)(nil)
	_ audio.Input  = (*Client)(nil)
)

func NewClient(sampleRate, bufferSize int) (*Client, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, float64(sampleRate), bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	c := &Client{
		bufferSize: bufferSize,
		sampleRate: sampleRate,
		stream:     stream,
		in:         in,
		out:        out,
		signal:     make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
	}
	c.writerWg.Add(1)
	go c.writeLoop()

	return c, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	select {
	case <-c.closeCh:
		return errClosed
	default:
	}
	if c.cancelCapture != nil {
		return nil
	}

	captureCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancelCapture = cancel
	c.captureDone = done

	go func() {
		defer close(done)
		c.readLoop(captureCtx, onAudio)
	}()
	return nil
}

func (c *Client) readLoop(ctx context.Context, onAudio func(audio []byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			logger.Warn("failed to read from portaudio stream", "error", err)
			continue
		}

		audioBuffer := bytes.Buffer{}
		if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
			logger.Warn("failed to encode captured audio", "error", err)
			continue
		}
		onAudio(audioBuffer.Bytes())
	}
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	cancel, done := c.cancelCapture, c.captureDone
	c.cancelCapture, c.captureDone = nil, nil
	c.captureMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (c *Client) SendAudio(audio []byte) error {
	select {
	case <-c.closeCh:
		return errClosed
	default:
	}

	c.mu.Lock()
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
	return nil
}

func (c *Client) writeLoop() {
	defer c.writerWg.Done()

	bufferSize := c.bufferSize * 2
	chunk := make([]byte, bufferSize)
	for {
		c.mu.Lock()
		ready := len(c.leftoverAudio) >= bufferSize
		if ready {
			copy(chunk, c.leftoverAudio[:bufferSize])
			c.leftoverAudio = c.leftoverAudio[bufferSize:]
		}
		c.mu.Unlock()

		if !ready {
			select {
			case <-c.closeCh:
				return
			case <-c.signal:
			}
			continue
		}

		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out); err != nil {
			logger.Warn("failed to decode playback audio", "error", err)
			continue
		}
		if err := c.stream.Write(); err != nil {
			logger.Warn("failed to write to portaudio stream", "error", err)
		}
	}
}

func (c *Client) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leftoverAudio = nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Channels:   1,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.StopCapture()
		close(c.closeCh)
		c.writerWg.Wait()

		if err := errors.Join(c.stream.Stop(), c.stream.Close(), portaudio.Terminate()); err != nil {
			logger.Warn("failed to release portaudio", "error", err)
		}
	})
}
