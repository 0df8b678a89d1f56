package main

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	session "github.com/koscakluka/ema-session/core"
	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
)

type fakeClient struct {
	mu          sync.Mutex
	connects    []session.Session
	disconnects []string
	messages    []string
	params      []protocol.ModelParameters
	interrupts  int
	listening   []bool
	sendErr     error
	snapshot    session.Snapshot
}

func (c *fakeClient) Connect(s session.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects = append(c.connects, s)
	return nil
}

func (c *fakeClient) Disconnect(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects = append(c.disconnects, reason)
	return nil
}

func (c *fakeClient) SendUserMessage(content string, params protocol.ModelParameters, _ ...session.MessageOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.messages = append(c.messages, content)
	c.params = append(c.params, params)
	return nil
}

func (c *fakeClient) SendInterrupt() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupts++
	return c.sendErr
}

func (c *fakeClient) SendListeningState(listening bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.listening = append(c.listening, listening)
	return nil
}

func (c *fakeClient) Snapshot() session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

type fakeSpeaker struct{ muted bool }

func (s *fakeSpeaker) SetMuted(muted bool) { s.muted = muted }
func (s *fakeSpeaker) Muted() bool         { return s.muted }

type fakeMic struct{ running bool }

func (m *fakeMic) Start() error {
	m.running = true
	return nil
}

func (m *fakeMic) Stop() error {
	m.running = false
	return nil
}

type fakeRecorder struct{ lines []string }

func (r *fakeRecorder) RecordUserMessage(text string) { r.lines = append(r.lines, text) }

func newTestModel(t *testing.T) (model, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	s, err := session.NewSession("wss://backend.example/ws", "conv-1", "alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	m := newModel(modelDeps{client: client, session: s})
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30}), client
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	updated, ok := next.(model)
	if !ok {
		t.Fatalf("expected model, got %T", next)
	}
	return updated
}

// run executes a command returned by submit and feeds its result back.
func run(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(t, m, cmd())
}

func TestModelSendsMessageWithParameters(t *testing.T) {
	m, client := newTestModel(t)
	recorder := &fakeRecorder{}
	m.deps.recorder = recorder

	if cmd := m.submit("/set temperature 0.5"); cmd != nil {
		t.Fatal("expected /set to run inline")
	}
	m = run(t, m, m.submit("hello"))

	if len(client.messages) != 1 || client.messages[0] != "hello" {
		t.Fatalf("expected one sent message, got %v", client.messages)
	}
	if value, ok := client.params[0].Get(protocol.ParamTemperature); !ok || value != 0.5 {
		t.Fatalf("expected temperature 0.5, got %v %v", value, ok)
	}
	if len(m.userLines) != 1 || len(recorder.lines) != 1 {
		t.Fatalf("expected the message to be shown and recorded, got %v %v", m.userLines, recorder.lines)
	}
	if !strings.Contains(m.View(), "hello") {
		t.Fatalf("expected view to show the message, got %q", m.View())
	}
}

func TestModelReportsSendFailure(t *testing.T) {
	m, client := newTestModel(t)
	client.sendErr = session.ErrNotConnected

	m = run(t, m, m.submit("hello"))

	if !m.statusError || !strings.Contains(m.status, "not connected") {
		t.Fatalf("expected send failure status, got %q", m.status)
	}
	if len(m.userLines) != 0 {
		t.Fatalf("expected failed message to be dropped, got %v", m.userLines)
	}
}

func TestModelCommands(t *testing.T) {
	m, client := newTestModel(t)
	speaker := &fakeSpeaker{}
	mic := &fakeMic{}
	m.deps.speaker = speaker
	m.deps.mic = mic

	m.submit("/mute")
	if !speaker.muted || !strings.Contains(m.headerLine(), "muted") {
		t.Fatalf("expected muted speaker, header %q", m.headerLine())
	}

	m = run(t, m, m.submit("/listen"))
	if !m.listening || !mic.running || len(client.listening) != 1 || !client.listening[0] {
		t.Fatalf("expected listening, got model=%v mic=%v sent=%v", m.listening, mic.running, client.listening)
	}
	m = run(t, m, m.submit("/listen"))
	if m.listening || mic.running || client.listening[1] {
		t.Fatalf("expected listening stopped, got model=%v mic=%v sent=%v", m.listening, mic.running, client.listening)
	}

	m = run(t, m, m.submit("/interrupt"))
	if client.interrupts != 1 || m.status != "interrupt sent" {
		t.Fatalf("expected interrupt sent, got %d %q", client.interrupts, m.status)
	}

	m.submit("/disconnect")
	if len(client.disconnects) != 1 {
		t.Fatalf("expected disconnect, got %v", client.disconnects)
	}
	_ = run(t, m, m.submit("/connect"))
	if len(client.connects) != 1 || client.connects[0].ConversationID != "conv-1" {
		t.Fatalf("expected connect to the configured session, got %v", client.connects)
	}

	if msg := m.submit("/quit")(); msg != (tea.QuitMsg{}) {
		t.Fatalf("expected quit, got %T", msg)
	}
}

func TestModelReportsUnknownCommand(t *testing.T) {
	m, _ := newTestModel(t)

	if cmd := m.submit("/dance"); cmd != nil {
		t.Fatal("expected no command")
	}
	if !m.statusError || !strings.Contains(m.status, "unknown command") {
		t.Fatalf("expected unknown command status, got %q", m.status)
	}
}

func TestModelHandlesBusEvents(t *testing.T) {
	m, _ := newTestModel(t)
	m.deps.inbox = newMailbox(4)

	next, cmd := m.Update(busEventMsg{event: events.NewConnectionReconnecting("conv-1", 2, time.Second, errors.New("boom"))})
	m = next.(model)
	if !m.statusError || !strings.Contains(m.status, "retry 2") {
		t.Fatalf("expected reconnect status, got %q", m.status)
	}
	if cmd == nil {
		t.Fatal("expected the inbox wait to be re-armed")
	}

	m = update(t, m, busEventMsg{event: events.NewErrorNotice(events.ErrorSourceServer, "overloaded", events.WithErrorCode("busy"))})
	if m.status != "server error: busy: overloaded" {
		t.Fatalf("unexpected status %q", m.status)
	}

	m.listening = true
	m = update(t, m, busEventMsg{event: events.NewConnectionDisconnected("conv-1", "bye")})
	if m.listening || m.statusError {
		t.Fatalf("expected disconnect to stop listening, got %v %q", m.listening, m.status)
	}
}

func TestModelRendersResponseStreams(t *testing.T) {
	m, client := newTestModel(t)
	start := time.Now()
	client.snapshot = session.Snapshot{
		State: session.StateConnected,
		CompletedStreams: []session.ResponseStream{
			{SpeakerID: "alice", Text: "first answer", CreatedAt: start, Interrupted: true},
		},
		OpenStreams: []session.ResponseStream{
			{SpeakerID: "bob", Text: "still typing", CreatedAt: start.Add(2 * time.Second), Open: true},
		},
	}
	m.userLines = []userLine{{text: "question", at: start.Add(time.Second)}}

	m = update(t, m, noticeMsg{text: "refresh"})

	entries := m.timelineEntries()
	if len(entries) != 3 || entries[0].speakerID != "alice" || entries[1].speakerID != "" || entries[2].speakerID != "bob" {
		t.Fatalf("unexpected timeline order: %+v", entries)
	}

	view := m.View()
	for _, want := range []string{"first answer", "(interrupted)", "question", "still typing", "connected"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got %q", want, view)
		}
	}
}
