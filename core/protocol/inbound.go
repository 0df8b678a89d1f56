package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type MessageType string

const (
	TypeMetadata      MessageType = "metadata"
	TypeTextChunk     MessageType = "text_chunk"
	TypeSpeakerChange MessageType = "speaker_change"
	TypeStreamEnd     MessageType = "stream_end"
	// TypeCharacterEnd is the backend's older name for TypeStreamEnd.
	TypeCharacterEnd MessageType = "character_end"
	TypeInterrupt    MessageType = "interrupt"
	TypeError        MessageType = "error"

	TypeUserMessage    MessageType = "user_message"
	TypeStartListening MessageType = "start_listening"
	TypeStopListening  MessageType = "stop_listening"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnsupportedType   = errors.New("unsupported message type")
	ErrMissingField      = errors.New("missing required field")
)

// Inbound is a decoded server-to-client envelope.
type Inbound interface {
	MessageType() MessageType
}

type Metadata struct {
	Type       MessageType `json:"type"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Channels   int         `json:"channels,omitempty"`
	Encoding   string      `json:"encoding,omitempty"`
}

func (m Metadata) MessageType() MessageType { return TypeMetadata }

type TextChunk struct {
	Type        MessageType `json:"type"`
	SpeakerID   string      `json:"speaker_id,omitempty"`
	CharacterID string      `json:"character_id,omitempty" jsonschema:"description=Accepted in place of speaker_id"`
	Sequence    *int64      `json:"sequence_number,omitempty"`
	Text        string      `json:"text"`
	IsFinal     bool        `json:"is_final,omitempty"`
}

func (m TextChunk) MessageType() MessageType { return TypeTextChunk }

type SpeakerChange struct {
	Type        MessageType `json:"type"`
	SpeakerID   string      `json:"speaker_id,omitempty"`
	CharacterID string      `json:"character_id,omitempty" jsonschema:"description=Accepted in place of speaker_id"`
	Sequence    *int64      `json:"sequence_number,omitempty"`
}

func (m SpeakerChange) MessageType() MessageType { return TypeSpeakerChange }

// StreamEnd closes the stream of SpeakerID, or every open stream when no
// speaker is given.
type StreamEnd struct {
	Type        MessageType `json:"type"`
	SpeakerID   string      `json:"speaker_id,omitempty"`
	CharacterID string      `json:"character_id,omitempty" jsonschema:"description=Accepted in place of speaker_id"`
	Sequence    *int64      `json:"sequence_number,omitempty"`
}

func (m StreamEnd) MessageType() MessageType { return TypeStreamEnd }

type Interrupt struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message,omitempty"`
}

func (m Interrupt) MessageType() MessageType { return TypeInterrupt }

type ErrorMessage struct {
	Type    MessageType     `json:"type"`
	Message string          `json:"message,omitempty"`
	RawCode json.RawMessage `json:"code,omitempty" jsonschema:"type=string,description=String or numeric error code"`
}

func (m ErrorMessage) MessageType() MessageType { return TypeError }

// Code returns the error code as text. Numeric codes are returned as
// written on the wire.
func (m ErrorMessage) Code() string {
	if len(m.RawCode) == 0 || string(m.RawCode) == "null" {
		return ""
	}

	var code string
	if err := json.Unmarshal(m.RawCode, &code); err == nil {
		return code
	}
	return string(m.RawCode)
}

// Decode parses one structured frame. Errors wrap ErrMalformedEnvelope,
// ErrUnsupportedType or ErrMissingField.
func Decode(data []byte) (Inbound, error) {
	var header struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	switch MessageType(strings.TrimSpace(string(header.Type))) {
	case "":
		return nil, fmt.Errorf("%w: type", ErrMissingField)

	case TypeMetadata:
		return decodeAs[Metadata](data)

	case TypeTextChunk:
		msg, err := decodeAs[TextChunk](data)
		if err != nil {
			return nil, err
		}
		if msg.SpeakerID = speakerID(msg.SpeakerID, msg.CharacterID); msg.SpeakerID == "" {
			return nil, fmt.Errorf("%w: %s.speaker_id", ErrMissingField, TypeTextChunk)
		}
		if !hasField(data, "text") {
			return nil, fmt.Errorf("%w: %s.text", ErrMissingField, TypeTextChunk)
		}
		return msg, nil

	case TypeSpeakerChange:
		msg, err := decodeAs[SpeakerChange](data)
		if err != nil {
			return nil, err
		}
		if msg.SpeakerID = speakerID(msg.SpeakerID, msg.CharacterID); msg.SpeakerID == "" {
			return nil, fmt.Errorf("%w: %s.speaker_id", ErrMissingField, TypeSpeakerChange)
		}
		return msg, nil

	case TypeStreamEnd, TypeCharacterEnd:
		msg, err := decodeAs[StreamEnd](data)
		if err != nil {
			return nil, err
		}
		msg.SpeakerID = speakerID(msg.SpeakerID, msg.CharacterID)
		return msg, nil

	case TypeInterrupt:
		return decodeAs[Interrupt](data)

	case TypeError:
		return decodeAs[ErrorMessage](data)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, header.Type)
	}
}

func decodeAs[T Inbound](data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	return msg, nil
}

// hasField reports whether the JSON object in data has key, even when its
// value is empty.
func hasField(data []byte, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

func speakerID(speakerID, characterID string) string {
	if id := strings.TrimSpace(speakerID); id != "" {
		return id
	}
	return strings.TrimSpace(characterID)
}
