package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-session/core/events"
)

func waitMsg(t *testing.T, box *mailbox) tea.Msg {
	t.Helper()
	got := make(chan tea.Msg, 1)
	go func() { got <- box.Wait() }()
	select {
	case msg := <-got:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func TestMailboxCoalescesStreamEvents(t *testing.T) {
	box := newMailbox(8)

	box.Push(busEventMsg{event: events.NewResponseStarted("alice")})
	for range 100 {
		box.Push(busEventMsg{event: events.NewResponseUpdated("alice", "x", "xx", -1)})
		box.Push(busEventMsg{event: events.NewAudioFrame([]byte{1}, 0)})
	}
	box.Push(busEventMsg{event: events.NewInterrupt(events.InterruptSourceServer, "stop")})

	if _, ok := waitMsg(t, box).(refreshMsg); !ok {
		t.Fatal("expected one coalesced refresh first")
	}
	msg, ok := waitMsg(t, box).(busEventMsg)
	if !ok || msg.event.Kind() != events.KindInterrupt {
		t.Fatalf("expected the interrupt next, got %#v", msg)
	}

	box.Push(busEventMsg{event: events.NewResponseCompleted("alice", "xx", false)})
	if _, ok := waitMsg(t, box).(refreshMsg); !ok {
		t.Fatal("expected a new refresh once the previous one was taken")
	}
}

func TestMailboxKeepsNoticesWhenBehind(t *testing.T) {
	box := newMailbox(3)

	box.Push(busEventMsg{event: events.NewResponseStarted("alice")})
	box.Push(busEventMsg{event: events.NewErrorNotice(events.ErrorSourceServer, "first")})
	box.Push(busEventMsg{event: events.NewConnectionReconnecting("conv", 1, time.Second, errors.New("lost"))})
	box.Push(noticeMsg{text: "third"})
	box.Push(noticeMsg{text: "fourth"})

	if _, ok := waitMsg(t, box).(refreshMsg); !ok {
		t.Fatal("expected the refresh to survive overflow")
	}
	want := []string{string(events.KindConnectionReconnecting), "third", "fourth"}
	for _, expected := range want {
		if got := describeMsg(waitMsg(t, box)); got != expected {
			t.Fatalf("expected %q, got %q", expected, got)
		}
	}
	if box.dropped != 1 {
		t.Fatalf("expected one dropped notice, got %d", box.dropped)
	}
}
