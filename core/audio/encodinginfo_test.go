package audio

import (
	"testing"
	"time"
)

func TestParseEncoding(t *testing.T) {
	testCases := []struct {
		name     string
		expected encodingFormat
		ok       bool
	}{
		{name: "linear16", expected: EncodingLinear16, ok: true},
		{name: " PCM_S16LE ", expected: EncodingLinear16, ok: true},
		{name: "ulaw", expected: EncodingMulaw, ok: true},
		{name: "a-law", expected: EncodingALaw, ok: true},
		{name: "opus", ok: false},
	}

	for _, tc := range testCases {
		got, ok := ParseEncoding(tc.name)
		if ok != tc.ok || got != tc.expected {
			t.Fatalf("%q: expected %q/%t, got %q/%t", tc.name, tc.expected, tc.ok, got, ok)
		}
	}
}

func TestEncodingInfoDuration(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Channels: 1, Format: EncodingLinear16}
	if got := info.Duration(32000); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := (EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}).Duration(4000); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", got)
	}
	if got := (EncodingInfo{SampleRate: 8000}).Duration(4000); got != 0 {
		t.Fatalf("expected 0 for unknown format, got %s", got)
	}
}

func TestEncodingInfoWithDefaults(t *testing.T) {
	if got := (EncodingInfo{SampleRate: 48000}).WithDefaults(); got.Channels != 1 || got.Format != EncodingLinear16 || got.SampleRate != 48000 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if !(EncodingInfo{}).IsZero() {
		t.Fatalf("expected zero value to report IsZero")
	}
}
