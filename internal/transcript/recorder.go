package transcript

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-session/core/events"
)

const recorderQueueCapacity = 64

// Recorder appends completed responses from a bus to a Store. Writes happen
// on a background goroutine so event handlers never wait on the disk.
type Recorder struct {
	store          *Store
	bus            *events.Bus
	conversationID func() string
	subscription   events.Subscription

	queue   chan Entry
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
}

// NewRecorder starts recording. conversationID is asked for the current
// conversation every time an entry is recorded.
func NewRecorder(store *Store, bus *events.Bus, conversationID func() string) *Recorder {
	r := &Recorder{
		store:          store,
		bus:            bus,
		conversationID: conversationID,
		queue:          make(chan Entry, recorderQueueCapacity),
		done:           make(chan struct{}),
	}
	r.subscription = events.On(bus, r.handleCompleted)

	go r.writeLoop()
	return r
}

func (r *Recorder) handleCompleted(completed events.ResponseCompleted) {
	if strings.TrimSpace(completed.Text) == "" {
		return
	}

	r.enqueue(Entry{
		Role:        RoleSpeaker,
		SpeakerID:   completed.SpeakerID,
		Text:        completed.Text,
		Interrupted: completed.Interrupted,
		CreatedAt:   completed.Timestamp(),
	})
}

// RecordUserMessage queues a message the user sent.
func (r *Recorder) RecordUserMessage(text string) {
	r.enqueue(Entry{Role: RoleUser, Text: text, CreatedAt: time.Now()})
}

func (r *Recorder) enqueue(entry Entry) {
	entry.ConversationID = r.conversationID()
	if entry.ConversationID == "" {
		return
	}

	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- entry:
	default:
		logger.Warn("transcript queue full, dropping entry",
			"conversation_id", entry.ConversationID,
			"role", string(entry.Role))
	}
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	for entry := range r.queue {
		if _, err := r.store.Append(context.Background(), entry); err != nil {
			logger.Error("failed to record transcript entry", "error", err)
		}
	}
}

// Close stops recording and waits for queued entries to be written. The
// store is left open.
func (r *Recorder) Close() {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return
	}
	r.closed = true
	r.bus.Unsubscribe(r.subscription)
	close(r.queue)
	r.closeMu.Unlock()

	<-r.done
}
