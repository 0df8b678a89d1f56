package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
	"github.com/koscakluka/ema-session/internal/utils"
)

const noSequence int64 = -1

// ResponseStream is the text one speaker produced for one response.
type ResponseStream struct {
	SpeakerID string
	Text      string
	// LastSequence is the last sequence number seen for the stream, or -1
	// when no fragment carried one.
	LastSequence int64
	Open         bool
	Interrupted  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// FragmentCount is how many fragments were appended. The fragments
	// themselves are not kept, only the accumulated Text.
	FragmentCount int
}

type responseStream struct {
	ResponseStream
	text strings.Builder
}

func newResponseStream(speakerID string) *responseStream {
	now := time.Now()
	return &responseStream{
		ResponseStream: ResponseStream{
			SpeakerID:    speakerID,
			LastSequence: noSequence,
			Open:         true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

func (s *responseStream) append(fragment string) {
	s.FragmentCount++
	s.text.WriteString(fragment)
	s.Text = s.text.String()
	s.UpdatedAt = time.Now()
}

func (s *responseStream) close(interrupted bool) {
	s.Open = false
	s.Interrupted = interrupted
	s.UpdatedAt = time.Now()
}

func (s *responseStream) snapshot() ResponseStream {
	var out ResponseStream
	if err := copier.CopyWithOption(&out, &s.ResponseStream, copier.Option{DeepCopy: true}); err != nil {
		out = s.ResponseStream
	}
	return out
}

// reassembler owns the response streams of a session. It returns the events
// each step produces instead of publishing them, callers publish in the
// returned order.
type reassembler struct {
	mu        sync.Mutex
	open      map[string]*responseStream
	openOrder []string
	completed []*responseStream
	history   int
}

func newReassembler(history int) *reassembler {
	return &reassembler{
		open:    map[string]*responseStream{},
		history: history,
	}
}

func (r *reassembler) AppendChunk(chunk protocol.TextChunk) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emitted []events.Event
	stream, ok := r.open[chunk.SpeakerID]
	if !ok {
		stream = r.openStream(chunk.SpeakerID)
		emitted = append(emitted, events.NewResponseStarted(chunk.SpeakerID))
	}

	sequence := utils.Deref(chunk.Sequence, noSequence)
	if chunk.Sequence != nil {
		if stream.LastSequence != noSequence && sequence < stream.LastSequence {
			logger.Warn("sequence regression",
				"speaker_id", chunk.SpeakerID,
				"last_sequence", stream.LastSequence,
				"sequence", sequence)
			emitted = append(emitted, events.NewErrorNotice(
				events.ErrorSourceOrdering,
				"sequence number went backwards",
				events.WithErrorSpeaker(chunk.SpeakerID),
			))
		}
		stream.LastSequence = sequence
	}

	stream.append(chunk.Text)
	emitted = append(emitted, events.NewResponseUpdated(chunk.SpeakerID, chunk.Text, stream.Text, sequence))

	if chunk.IsFinal {
		emitted = append(emitted, r.closeStream(chunk.SpeakerID, false))
	}
	return emitted
}

// SpeakerChange completes the speaker's open stream, if any, and starts a
// new one.
func (r *reassembler) SpeakerChange(change protocol.SpeakerChange) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emitted []events.Event
	if _, ok := r.open[change.SpeakerID]; ok {
		emitted = append(emitted, r.closeStream(change.SpeakerID, false))
	}

	stream := r.openStream(change.SpeakerID)
	if change.Sequence != nil {
		stream.LastSequence = *change.Sequence
	}
	return append(emitted, events.NewResponseStarted(change.SpeakerID))
}

// End closes the stream of speakerID, or every open stream when speakerID
// is empty.
func (r *reassembler) End(speakerID string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if speakerID == "" {
		return r.closeAll(false)
	}
	if _, ok := r.open[speakerID]; !ok {
		return nil
	}
	return []events.Event{r.closeStream(speakerID, false)}
}

// Interrupt force-completes every open stream in the order they opened.
func (r *reassembler) Interrupt() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closeAll(true)
}

func (r *reassembler) closeAll(interrupted bool) []events.Event {
	emitted := make([]events.Event, 0, len(r.openOrder))
	for _, speakerID := range slices.Clone(r.openOrder) {
		emitted = append(emitted, r.closeStream(speakerID, interrupted))
	}
	return emitted
}

func (r *reassembler) openStream(speakerID string) *responseStream {
	stream := newResponseStream(speakerID)
	r.open[speakerID] = stream
	r.openOrder = append(r.openOrder, speakerID)
	return stream
}

func (r *reassembler) closeStream(speakerID string, interrupted bool) events.Event {
	stream := r.open[speakerID]
	delete(r.open, speakerID)
	r.openOrder = slices.DeleteFunc(r.openOrder, func(id string) bool { return id == speakerID })

	stream.close(interrupted)
	if r.history > 0 {
		r.completed = append(r.completed, stream)
		if overflow := len(r.completed) - r.history; overflow > 0 {
			r.completed = slices.Delete(r.completed, 0, overflow)
		}
	}

	return events.NewResponseCompleted(speakerID, stream.Text, interrupted)
}

// Reset drops every stream without emitting events.
func (r *reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.open)
	r.openOrder = nil
	r.completed = nil
}

// Open returns copies of the open streams in the order they opened.
func (r *reassembler) Open() []ResponseStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	streams := make([]ResponseStream, 0, len(r.openOrder))
	for _, speakerID := range r.openOrder {
		streams = append(streams, r.open[speakerID].snapshot())
	}
	return streams
}

// Completed returns copies of the retained completed streams, oldest first.
func (r *reassembler) Completed() []ResponseStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	streams := make([]ResponseStream, 0, len(r.completed))
	for _, stream := range r.completed {
		streams = append(streams, stream.snapshot())
	}
	return streams
}

func (r *reassembler) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
