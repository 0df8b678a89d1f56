package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-session/core/events"
)

const mailboxLimit = 256

// refreshMsg asks the UI to redraw from a fresh snapshot.
type refreshMsg struct{}

// mailbox hands messages to the UI without ever blocking the sender.
// Response and audio events only mean "the snapshot changed", so any number
// of them pending at once collapse into one refreshMsg. Other messages are
// queued in order; past the limit the oldest one is dropped and logged.
type mailbox struct {
	mu             sync.Mutex
	queue          []tea.Msg
	refreshPending bool
	limit          int
	dropped        int

	signal chan struct{}
}

func newMailbox(limit int) *mailbox {
	if limit <= 0 {
		limit = mailboxLimit
	}
	return &mailbox{limit: limit, signal: make(chan struct{}, 1)}
}

func (m *mailbox) Push(msg tea.Msg) {
	if isRefreshOnly(msg) {
		msg = refreshMsg{}
	}

	m.mu.Lock()
	switch msg.(type) {
	case refreshMsg:
		if m.refreshPending {
			m.mu.Unlock()
			return
		}
		m.refreshPending = true
		m.queue = append(m.queue, msg)
	default:
		if m.queuedNotices() >= m.limit {
			m.dropOldestNotice()
		}
		m.queue = append(m.queue, msg)
	}
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Wait blocks until a message is available and returns it.
func (m *mailbox) Wait() tea.Msg {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			if _, ok := msg.(refreshMsg); ok {
				m.refreshPending = false
			}
			m.mu.Unlock()
			return msg
		}
		m.mu.Unlock()
		<-m.signal
	}
}

func (m *mailbox) queuedNotices() int {
	n := len(m.queue)
	if m.refreshPending {
		n--
	}
	return n
}

func (m *mailbox) dropOldestNotice() {
	for i, msg := range m.queue {
		if _, ok := msg.(refreshMsg); ok {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.dropped++
		logger.Warn("ui mailbox full, dropped message",
			"message", describeMsg(msg),
			"dropped_total", m.dropped)
		return
	}
}

func isRefreshOnly(msg tea.Msg) bool {
	busMsg, ok := msg.(busEventMsg)
	if !ok {
		return false
	}
	switch busMsg.event.Kind().Namespace() {
	case events.KindResponseUpdated.Namespace(), events.KindAudioFrame.Namespace():
		return true
	}
	return false
}

func describeMsg(msg tea.Msg) string {
	switch m := msg.(type) {
	case busEventMsg:
		return string(m.event.Kind())
	case noticeMsg:
		return m.text
	}
	return "unknown"
}
