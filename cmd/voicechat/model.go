package main

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/koscakluka/ema-session/core"
	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
)

const (
	maxUserLines = 64
	chromeHeight = 6
)

type sessionClient interface {
	Connect(s session.Session) error
	Disconnect(reason string) error
	SendUserMessage(content string, params protocol.ModelParameters, opts ...session.MessageOption) error
	SendInterrupt() error
	SendListeningState(listening bool) error
	Snapshot() session.Snapshot
}

type speaker interface {
	SetMuted(muted bool)
	Muted() bool
}

type capture interface {
	Start() error
	Stop() error
}

type inbox interface {
	Wait() tea.Msg
}

type messageRecorder interface {
	RecordUserMessage(text string)
}

// modelDeps are the collaborators the UI drives. speaker, mic and recorder
// are optional.
type modelDeps struct {
	client   sessionClient
	session  session.Session
	inbox    inbox
	speaker  speaker
	mic      capture
	recorder messageRecorder
}

// Messages delivered through deps.inbox.
type (
	busEventMsg struct{ event events.Event }
	noticeMsg   struct {
		text    string
		isError bool
	}
)

// Results of commands run off the update loop.
type (
	sentMsg struct {
		text string
		at   time.Time
		err  error
	}
	listeningMsg struct {
		listening bool
		err       error
	}
	actionMsg struct {
		status string
		err    error
	}
)

type userLine struct {
	text string
	at   time.Time
}

type model struct {
	deps modelDeps

	snapshot  session.Snapshot
	userLines []userLine
	params    protocol.ModelParameters
	listening bool

	status      string
	statusError bool

	ready  bool
	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	theme    uiTheme
}

func newModel(deps modelDeps) model {
	input := textinput.New()
	input.Placeholder = "Say something, or /help"
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	return model{
		deps:     deps,
		input:    input,
		theme:    newTheme(),
		status:   "connecting",
		snapshot: deps.client.Snapshot(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.connectCmd(), waitInbox(m.deps.inbox))
}

func waitInbox(in inbox) tea.Cmd {
	if in == nil {
		return nil
	}
	return in.Wait
}

func (m model) connectCmd() tea.Cmd {
	client, s := m.deps.client, m.deps.session
	return func() tea.Msg {
		if err := client.Connect(s); err != nil {
			return actionMsg{err: fmt.Errorf("connect: %w", err)}
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			cmds = append(cmds, m.submit(line))
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			cmds = append(cmds, cmd)
		}
	case busEventMsg:
		m.handleEvent(msg.event)
		cmds = append(cmds, waitInbox(m.deps.inbox))
	case noticeMsg:
		m.setStatus(msg.text, msg.isError)
		cmds = append(cmds, waitInbox(m.deps.inbox))
	case refreshMsg:
		cmds = append(cmds, waitInbox(m.deps.inbox))
	case sentMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("send failed: %v", msg.err), true)
			break
		}
		m.userLines = append(m.userLines, userLine{text: msg.text, at: msg.at})
		if len(m.userLines) > maxUserLines {
			m.userLines = m.userLines[len(m.userLines)-maxUserLines:]
		}
		if m.deps.recorder != nil {
			m.deps.recorder.RecordUserMessage(msg.text)
		}
	case listeningMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			break
		}
		m.listening = msg.listening
		m.setStatus(ternary(msg.listening, "listening", "stopped listening"), false)
	case actionMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else if msg.status != "" {
			m.setStatus(msg.status, false)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.snapshot = m.deps.client.Snapshot()
	m.renderTimeline()
	return m, tea.Batch(cmds...)
}

func (m *model) submit(line string) tea.Cmd {
	in, err := parseInput(line)
	if err != nil {
		if !errors.Is(err, errEmptyInput) {
			m.setStatus(err.Error(), true)
		}
		return nil
	}

	if !in.isCommand() {
		client, params := m.deps.client, m.params
		return func() tea.Msg {
			err := client.SendUserMessage(in.text, params)
			return sentMsg{text: in.text, at: time.Now(), err: err}
		}
	}

	switch in.command {
	case cmdQuit:
		return tea.Quit
	case cmdHelp:
		m.setStatus(helpText, false)
	case cmdConnect:
		return m.connectCmd()
	case cmdDisconnect:
		if err := m.deps.client.Disconnect("user request"); err != nil {
			m.setStatus(err.Error(), true)
		}
	case cmdInterrupt:
		client := m.deps.client
		return func() tea.Msg {
			if err := client.SendInterrupt(); err != nil {
				return actionMsg{err: fmt.Errorf("interrupt: %w", err)}
			}
			return actionMsg{status: "interrupt sent"}
		}
	case cmdListen:
		return m.toggleListening()
	case cmdMute:
		if m.deps.speaker == nil {
			m.setStatus("no audio output", true)
			break
		}
		muted := !m.deps.speaker.Muted()
		m.deps.speaker.SetMuted(muted)
		m.setStatus(ternary(muted, "muted", "unmuted"), false)
	case cmdSet, cmdUnset:
		if err := applyParameter(&m.params, in); err != nil {
			m.setStatus(err.Error(), true)
			break
		}
		m.setStatus("parameters: "+formatParameters(m.params), false)
	}
	return nil
}

func (m *model) toggleListening() tea.Cmd {
	client, mic, next := m.deps.client, m.deps.mic, !m.listening
	return func() tea.Msg {
		if err := client.SendListeningState(next); err != nil {
			return listeningMsg{err: fmt.Errorf("listen: %w", err)}
		}
		if mic != nil {
			toggle := mic.Stop
			if next {
				toggle = mic.Start
			}
			if err := toggle(); err != nil {
				return listeningMsg{listening: next, err: err}
			}
		}
		return listeningMsg{listening: next}
	}
}

func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case events.ConnectionConnecting:
		m.setStatus(ternary(e.Attempt == 0, "connecting", fmt.Sprintf("connecting (retry %d)", e.Attempt)), false)
	case events.ConnectionConnected:
		m.setStatus("connected to "+e.ConversationID, false)
	case events.ConnectionReconnecting:
		m.setStatus(fmt.Sprintf("connection lost, retry %d in %s", e.Attempt, e.Delay), true)
	case events.ConnectionDisconnected:
		m.listening = false
		m.setStatus("disconnected: "+e.Reason, false)
	case events.ConnectionError:
		m.listening = false
		m.setStatus(fmt.Sprintf("connection failed after %d retries: %v", e.Attempts, e.Cause), true)
	case events.Interrupt:
		m.setStatus(fmt.Sprintf("interrupted by %s", e.Source), false)
	case events.ErrorNotice:
		text := e.Message
		if e.Code != "" {
			text = e.Code + ": " + text
		}
		m.setStatus(fmt.Sprintf("%s error: %s", e.Source, text), true)
	case events.Metadata:
		m.setStatus(fmt.Sprintf("audio %s %dHz x%d", e.Encoding, e.SampleRate, e.Channels), false)
	}
}

func (m *model) setStatus(text string, isError bool) {
	m.status = text
	m.statusError = isError
}

func (m *model) resize() {
	contentWidth := max(20, m.width-4)
	contentHeight := max(3, m.height-chromeHeight)
	m.input.Width = max(10, contentWidth-4)

	if !m.ready {
		m.timeline = viewport.New(contentWidth, contentHeight)
		m.ready = true
		return
	}
	m.timeline.Width = contentWidth
	m.timeline.Height = contentHeight
}

type timelineEntry struct {
	at          time.Time
	speakerID   string
	text        string
	open        bool
	interrupted bool
}

// timelineEntries merges sent messages with the response streams of the
// latest snapshot, ordered by when they started.
func (m *model) timelineEntries() []timelineEntry {
	entries := make([]timelineEntry, 0, len(m.userLines)+len(m.snapshot.CompletedStreams)+len(m.snapshot.OpenStreams))
	for _, line := range m.userLines {
		entries = append(entries, timelineEntry{at: line.at, text: line.text})
	}
	for _, stream := range m.snapshot.CompletedStreams {
		entries = append(entries, timelineEntry{at: stream.CreatedAt, speakerID: stream.SpeakerID, text: stream.Text, interrupted: stream.Interrupted})
	}
	for _, stream := range m.snapshot.OpenStreams {
		entries = append(entries, timelineEntry{at: stream.CreatedAt, speakerID: stream.SpeakerID, text: stream.Text, open: true})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	return entries
}

func (m *model) renderTimeline() {
	if !m.ready {
		return
	}

	entries := m.timelineEntries()
	if len(entries) == 0 {
		m.timeline.SetContent(m.theme.muted.Render("No messages yet."))
		return
	}

	width := max(10, m.timeline.Width-2)
	var b strings.Builder
	for _, entry := range entries {
		label, style := "you", m.theme.user
		if entry.speakerID != "" {
			label, style = entry.speakerID, m.theme.speakerStyle(entry.speakerID)
		}
		switch {
		case entry.open:
			label += " …"
		case entry.interrupted:
			label += " (interrupted)"
		}

		b.WriteString(style.Render(entry.at.Format("15:04:05") + " " + label))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(entry.text, width))
		b.WriteString("\n\n")
	}

	m.timeline.SetContent(strings.TrimRight(b.String(), "\n"))
	m.timeline.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting…"
	}

	header := m.theme.header.Render(m.headerLine())
	status := m.theme.status.Render(m.status)
	if m.statusError {
		status = m.theme.errorStatus.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.theme.panel.Render(m.timeline.View()),
		status,
		m.theme.inputPanel.Render(m.input.View()),
	)
}

func (m model) headerLine() string {
	parts := []string{"voicechat", m.deps.session.ConversationID, m.snapshot.State.String()}
	if m.listening {
		parts = append(parts, "listening")
	}
	if m.deps.speaker != nil && m.deps.speaker.Muted() {
		parts = append(parts, "muted")
	}
	if !m.params.IsZero() {
		parts = append(parts, formatParameters(m.params))
	}
	return strings.Join(parts, " · ")
}

func formatParameters(params protocol.ModelParameters) string {
	values := params.Values()
	if len(values) == 0 {
		return "defaults"
	}

	parts := make([]string, 0, len(values))
	for _, name := range protocol.ParameterNames {
		if value, ok := values[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%g", name, value))
		}
	}
	return strings.Join(parts, " ")
}

type uiTheme struct {
	header      lipgloss.Style
	panel       lipgloss.Style
	inputPanel  lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	muted       lipgloss.Style
	user        lipgloss.Style
	speakers    []lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Padding(0, 1),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true).Padding(0, 1),
		muted:       lipgloss.NewStyle().Foreground(muted),
		user:        lipgloss.NewStyle().Foreground(mint).Bold(true),
		speakers: []lipgloss.Style{
			lipgloss.NewStyle().Foreground(pink).Bold(true),
			lipgloss.NewStyle().Foreground(blue).Bold(true),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#fffb96")).Bold(true),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#b967ff")).Bold(true),
		},
	}
}

// speakerStyle picks a stable color per speaker id.
func (t uiTheme) speakerStyle(speakerID string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(speakerID))
	return t.speakers[h.Sum32()%uint32(len(t.speakers))]
}

func ternary[T any](condition bool, whenTrue T, whenFalse T) T {
	if condition {
		return whenTrue
	}
	return whenFalse
}
