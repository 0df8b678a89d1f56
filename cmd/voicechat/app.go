package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	session "github.com/koscakluka/ema-session/core"
	"github.com/koscakluka/ema-session/core/audio"
	"github.com/koscakluka/ema-session/core/audio/miniaudio"
	"github.com/koscakluka/ema-session/core/audio/portaudio"
	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/internal/config"
	"github.com/koscakluka/ema-session/internal/transcript"
)

// app owns everything the UI talks to: the session client, the audio
// devices and the transcript recorder.
type app struct {
	client  *session.Client
	session session.Session

	sink       *audio.Sink
	mic        *microphone
	closeAudio func()

	store    *transcript.Store
	recorder *transcript.Recorder

	inbox        *mailbox
	subscription events.Subscription
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	sess, err := session.NewSession(cfg.SessionURL, cfg.ConversationID, cfg.SpeakerIDs...)
	if err != nil {
		return nil, err
	}

	a := &app{
		session: sess,
		inbox:   newMailbox(mailboxLimit),
		client: session.NewClient(
			session.WithBaseContext(ctx),
			session.WithReconnectDelay(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay),
			session.WithMaxReconnectAttempts(cfg.MaxReconnectAttempts),
			session.WithDefaultModel(cfg.Model),
			session.WithDefaultParameters(cfg.Parameters.ModelParameters()),
		),
	}
	a.subscription = a.client.SubscribeAll(a.forward)

	if err := a.openAudio(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.TranscriptDB != "" {
		store, err := transcript.Open(cfg.TranscriptDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		a.store = store
		a.recorder = transcript.NewRecorder(store, a.client.Bus(), a.conversationID)
	}

	return a, nil
}

func (a *app) openAudio(ctx context.Context, cfg config.Config) error {
	var (
		output audio.Output
		input  audio.Input
	)

	switch cfg.AudioBackend {
	case config.AudioBackendMiniaudio:
		info := audio.EncodingInfo{SampleRate: cfg.AudioSampleRate}.WithDefaults()
		client, err := miniaudio.NewClient(info, info)
		if err != nil {
			return fmt.Errorf("open miniaudio: %w", err)
		}
		output, input, a.closeAudio = client, client, client.Close
	case config.AudioBackendPortaudio:
		client, err := portaudio.NewClient(cfg.AudioSampleRate, 0)
		if err != nil {
			return fmt.Errorf("open portaudio: %w", err)
		}
		output, input, a.closeAudio = client, client, client.Close
	default:
		return nil
	}

	a.sink = audio.NewSink(a.client.Bus(), output, audio.WithErrorHandler(func(err error) {
		a.notify(noticeMsg{text: err.Error(), isError: true})
	}))
	a.mic = &microphone{ctx: ctx, input: input, client: a.client, notify: a.notify}
	return nil
}

func (a *app) conversationID() string {
	if s, ok := a.client.Session(); ok {
		return s.ConversationID
	}
	return ""
}

// forward hands bus events to the UI without blocking the session loop.
func (a *app) forward(event events.Event) {
	a.notify(busEventMsg{event: event})
}

func (a *app) notify(msg tea.Msg) {
	a.inbox.Push(msg)
}

func (a *app) modelDeps() modelDeps {
	deps := modelDeps{
		client:  a.client,
		session: a.session,
		inbox:   a.inbox,
	}
	// Typed nils would defeat the nil checks in the model.
	if a.sink != nil {
		deps.speaker = a.sink
	}
	if a.mic != nil {
		deps.mic = a.mic
	}
	if a.recorder != nil {
		deps.recorder = a.recorder
	}
	return deps
}

func (a *app) Close() {
	if a.mic != nil {
		_ = a.mic.Stop()
	}
	if a.sink != nil {
		a.sink.Close()
	}
	if a.closeAudio != nil {
		a.closeAudio()
	}

	a.client.Unsubscribe(a.subscription)
	a.client.Close()

	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// microphone streams captured audio into the session while listening.
type microphone struct {
	ctx    context.Context
	input  audio.Input
	client *session.Client
	notify func(tea.Msg)

	mu        sync.Mutex
	capturing bool
}

func (m *microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capturing {
		return nil
	}

	onErr := func(err error) { m.notify(noticeMsg{text: err.Error(), isError: true}) }
	if err := m.input.StartCapture(m.ctx, audio.Forward(m.client, onErr, session.ErrNotConnected)); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	m.capturing = true
	return nil
}

func (m *microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.capturing {
		return nil
	}

	m.capturing = false
	if err := m.input.StopCapture(); err != nil {
		return errors.Join(errors.New("stop capture"), err)
	}
	return nil
}
