package session

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
	"github.com/koscakluka/ema-session/core/transport"
	"github.com/koscakluka/ema-session/internal/utils"
)

func decodeSent(t *testing.T, frame sentFrame) map[string]any {
	t.Helper()
	if frame.frameType != transport.FrameText {
		t.Fatalf("expected text frame, got %s", frame.frameType)
	}
	var payload map[string]any
	if err := json.Unmarshal(frame.data, &payload); err != nil {
		t.Fatalf("unexpected payload %q: %v", frame.data, err)
	}
	return payload
}

func TestSendsAreRejectedWhileDisconnected(t *testing.T) {
	c, _, rec := newTestClient(t)

	testCases := []struct {
		name     string
		send     func() error
		expected error
	}{
		{name: "user message", send: func() error { return c.SendUserMessage("hello", protocol.ModelParameters{}) }, expected: ErrNotConnected},
		{name: "blank user message", send: func() error { return c.SendUserMessage("  \n\t", protocol.ModelParameters{}) }, expected: ErrEmptyContent},
		{name: "audio", send: func() error { return c.SendAudioChunk([]byte{1}) }, expected: ErrNotConnected},
		{name: "empty audio", send: func() error { return c.SendAudioChunk(nil) }, expected: ErrEmptyAudio},
		{name: "interrupt", send: c.SendInterrupt, expected: ErrNotConnected},
		{name: "start listening", send: func() error { return c.SendListeningState(true) }, expected: ErrNotConnected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.send(); !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
		})
	}
	rec.expectNone(t, 50*time.Millisecond)
}

func TestSendUserMessageOmitsInvalidParameters(t *testing.T) {
	c, ft, rec := newTestClient(t,
		WithDefaultModel("default-model"),
		WithDefaultParameters(protocol.ModelParameters{Temperature: utils.Ptr(0.5)}),
	)
	conn := connectAndOpen(t, c, ft, rec)

	params := protocol.ModelParameters{
		Temperature: utils.Ptr(math.NaN()),
		TopP:        utils.Ptr(0.9),
		TopK:        utils.Ptr(math.Inf(1)),
	}
	if err := c.SendUserMessage("hello", params); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := c.SendUserMessage("again", protocol.ModelParameters{}, WithModel("other-model")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	sent := conn.sentFrames()
	if len(sent) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(sent))
	}

	first := decodeSent(t, sent[0])
	if first["type"] != "user_message" || first["content"] != "hello" || first["model"] != "default-model" {
		t.Fatalf("unexpected envelope: %v", first)
	}
	if first["temperature"] != 0.5 {
		t.Fatalf("expected default temperature to survive a NaN override, got %v", first["temperature"])
	}
	if first["top_p"] != 0.9 {
		t.Fatalf("expected top_p 0.9, got %v", first["top_p"])
	}
	if _, ok := first["top_k"]; ok {
		t.Fatalf("expected infinite top_k to be omitted, got %v", first["top_k"])
	}

	second := decodeSent(t, sent[1])
	if second["model"] != "other-model" {
		t.Fatalf("expected model override, got %v", second["model"])
	}
	rec.expectNone(t, 30*time.Millisecond)
}

func TestSendAudioAndListeningState(t *testing.T) {
	c, ft, rec := newTestClient(t)
	conn := connectAndOpen(t, c, ft, rec)

	if err := c.SendListeningState(true); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := c.SendAudioChunk([]byte{7, 8}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := c.SendListeningState(false); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	sent := conn.sentFrames()
	if len(sent) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(sent))
	}
	if payload := decodeSent(t, sent[0]); payload["type"] != "start_listening" {
		t.Fatalf("expected start_listening, got %v", payload)
	}
	if sent[1].frameType != transport.FrameBinary || string(sent[1].data) != string([]byte{7, 8}) {
		t.Fatalf("expected raw audio frame, got %+v", sent[1])
	}
	if payload := decodeSent(t, sent[2]); payload["type"] != "stop_listening" {
		t.Fatalf("expected stop_listening, got %v", payload)
	}
}

func TestSendInterruptCompletesStreamsLocally(t *testing.T) {
	c, ft, rec := newTestClient(t)
	conn := connectAndOpen(t, c, ft, rec)

	conn.serverText(chunk("alice", 1, "one", false))
	conn.serverText(chunk("bob", 1, "two", false))
	rec.expectKinds(t, events.KindResponseStarted, events.KindResponseUpdated, events.KindResponseStarted, events.KindResponseUpdated)

	if err := c.SendInterrupt(); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	got := rec.expectKinds(t, events.KindResponseCompleted, events.KindResponseCompleted, events.KindInterrupt)
	if got[0].(events.ResponseCompleted).SpeakerID != "alice" || got[1].(events.ResponseCompleted).SpeakerID != "bob" {
		t.Fatalf("expected completions in open order, got %+v", got)
	}
	if interrupt := got[2].(events.Interrupt); interrupt.Source != events.InterruptSourceUser {
		t.Fatalf("expected user interrupt, got %+v", interrupt)
	}

	sent := conn.sentFrames()
	if len(sent) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(sent))
	}
	if payload := decodeSent(t, sent[0]); payload["type"] != "interrupt" || len(payload) != 1 {
		t.Fatalf("expected bare interrupt envelope, got %v", payload)
	}
}

func TestEventHandlerCanCallClient(t *testing.T) {
	c, ft, rec := newTestClient(t)

	sendErr := make(chan error, 1)
	events.On(c.Bus(), func(events.ConnectionConnected) {
		sendErr <- c.SendListeningState(true)
	})

	conn := connectAndOpen(t, c, ft, rec)
	select {
	case err := <-sendErr:
		if err != nil {
			t.Fatalf("unexpected send error from handler: %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for handler")
	}
	if len(conn.sentFrames()) != 1 {
		t.Fatalf("expected the handler's frame to be sent")
	}
}
