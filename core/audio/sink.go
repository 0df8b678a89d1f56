package audio

import (
	"fmt"
	"sync"

	"github.com/koscakluka/ema-session/core/events"
)

// Output plays audio. SendAudio must not block for long, it is called from
// the event handler that received the frame.
type Output interface {
	EncodingInfo() EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}

// Reconfigurable outputs can switch format when the backend announces one.
type Reconfigurable interface {
	Configure(info EncodingInfo) error
}

// Sink feeds audio frames from a bus into an Output. Interrupts clear the
// output's buffer and metadata reconfigures it when it supports that.
type Sink struct {
	bus           *events.Bus
	output        Output
	subscriptions []events.Subscription

	mu     sync.Mutex
	info   EncodingInfo
	muted  bool
	closed bool
	onErr  func(error)
}

type SinkOption func(*Sink)

// WithErrorHandler is called for output failures. By default they are
// logged.
func WithErrorHandler(onErr func(error)) SinkOption {
	return func(s *Sink) {
		if onErr != nil {
			s.onErr = onErr
		}
	}
}

func NewSink(bus *events.Bus, output Output, opts ...SinkOption) *Sink {
	s := &Sink{
		bus:    bus,
		output: output,
		info:   output.EncodingInfo(),
		onErr: func(err error) {
			logger.Warn("audio output failed", "error", err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.subscriptions = []events.Subscription{
		events.On(bus, s.handleFrame),
		events.On(bus, s.handleInterrupt),
		events.On(bus, s.handleMetadata),
	}
	return s
}

func (s *Sink) handleFrame(frame events.AudioFrame) {
	s.mu.Lock()
	skip := s.closed || s.muted
	s.mu.Unlock()
	if skip || len(frame.Audio) == 0 {
		return
	}

	if err := s.output.SendAudio(frame.Audio); err != nil {
		s.onErr(fmt.Errorf("failed to play audio frame %d: %w", frame.Sequence, err))
	}
}

func (s *Sink) handleInterrupt(events.Interrupt) {
	s.output.ClearBuffer()
}

func (s *Sink) handleMetadata(metadata events.Metadata) {
	info := EncodingInfo{SampleRate: metadata.SampleRate, Channels: metadata.Channels}
	if format, ok := ParseEncoding(metadata.Encoding); ok {
		info.Format = format
	}

	s.mu.Lock()
	info = mergeEncodingInfo(s.info, info)
	changed := info != s.info
	s.info = info
	s.mu.Unlock()

	if !changed {
		return
	}

	reconfigurable, ok := s.output.(Reconfigurable)
	if !ok {
		return
	}
	if err := reconfigurable.Configure(info); err != nil {
		s.onErr(fmt.Errorf("failed to reconfigure audio output: %w", err))
	}
}

func mergeEncodingInfo(current, announced EncodingInfo) EncodingInfo {
	if announced.SampleRate > 0 {
		current.SampleRate = announced.SampleRate
	}
	if announced.Channels > 0 {
		current.Channels = announced.Channels
	}
	if announced.Format.Name() != "" {
		current.Format = announced.Format
	}
	return current
}

// EncodingInfo returns the encoding frames are currently played with.
func (s *Sink) EncodingInfo() EncodingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// SetMuted drops incoming frames while muted and clears queued audio when
// muting.
func (s *Sink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()

	if muted {
		s.output.ClearBuffer()
	}
}

func (s *Sink) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Close stops the sink from receiving events. The output is left open.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, sub := range s.subscriptions {
		s.bus.Unsubscribe(sub)
	}
}
