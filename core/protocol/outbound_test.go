package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/koscakluka/ema-session/internal/utils"
)

func decodeObject(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var object map[string]any
	if err := json.Unmarshal(data, &object); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
	return object
}

func TestEncodeControlCommands(t *testing.T) {
	testCases := []struct {
		command  Command
		expected string
	}{
		{command: StartListening{}, expected: `{"type":"start_listening"}`},
		{command: StopListening{}, expected: `{"type":"stop_listening"}`},
		{command: InterruptRequest{}, expected: `{"type":"interrupt"}`},
	}

	for _, testCase := range testCases {
		data, err := Encode(testCase.command)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != testCase.expected {
			t.Fatalf("expected %s, got %s", testCase.expected, data)
		}
	}
}

func TestEncodeUserMessageOmitsInvalidParameters(t *testing.T) {
	data, err := Encode(UserMessage{
		Content: "hi",
		Parameters: ModelParameters{
			Temperature: utils.Ptr(math.NaN()),
			TopP:        utils.Ptr(0.9),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	object := decodeObject(t, data)
	if object["type"] != "user_message" || object["content"] != "hi" {
		t.Fatalf("expected user message envelope, got %s", data)
	}
	if object["top_p"] != 0.9 {
		t.Fatalf("expected top_p 0.9, got %v", object["top_p"])
	}
	if _, ok := object["temperature"]; ok {
		t.Fatalf("expected temperature to be omitted, got %s", data)
	}
	if _, ok := object["model"]; ok {
		t.Fatalf("expected empty model to be omitted, got %s", data)
	}
}

func TestEncodeUserMessageKeepsExplicitZero(t *testing.T) {
	data, err := Encode(UserMessage{
		Content:    "hi",
		Model:      " qwen/qwen3-235b-a22b-2507 ",
		Parameters: ModelParameters{PresencePenalty: utils.Ptr(0.0), TopK: utils.Ptr(math.Inf(1))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	object := decodeObject(t, data)
	if value, ok := object["presence_penalty"]; !ok || value != 0.0 {
		t.Fatalf("expected explicit zero presence_penalty, got %s", data)
	}
	if _, ok := object["top_k"]; ok {
		t.Fatalf("expected infinite top_k to be omitted, got %s", data)
	}
	if object["model"] != "qwen/qwen3-235b-a22b-2507" {
		t.Fatalf("expected trimmed model, got %v", object["model"])
	}
}

func TestEncodeRejectsUnknownCommands(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for nil command, got %v", err)
	}
}
